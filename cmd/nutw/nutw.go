package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nutvault/walletcore/cashu"
	"github.com/nutvault/walletcore/cashu/nuts/nut05"
	"github.com/nutvault/walletcore/wallet"
	"github.com/joho/godotenv"
	decodepay "github.com/nbd-wtf/ln-decodepay"
	"github.com/urfave/cli/v2"
)

var nutw *wallet.Wallet

func walletConfig() wallet.Config {
	path := setWalletPath()
	config := wallet.Config{WalletPath: path, CurrentMintURL: "http://127.0.0.1:3338"}

	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err != nil {
		wd, err := os.Getwd()
		if err != nil {
			envPath = ""
		} else {
			envPath = filepath.Join(wd, ".env")
		}
	}

	if len(envPath) > 0 {
		if err := godotenv.Load(envPath); err == nil {
			config.CurrentMintURL = getMintURL()
		}
	}

	config.Password = os.Getenv("WALLET_PASSWORD")
	return config
}

func setWalletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	path := filepath.Join(homedir, ".gonuts", "wallet")
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatal(err)
	}
	return path
}

func getMintURL() string {
	if mintURL := os.Getenv("MINT_URL"); mintURL != "" {
		return mintURL
	}

	mintHost := os.Getenv("MINT_HOST")
	mintPort := os.Getenv("MINT_PORT")
	if mintHost == "" || mintPort == "" {
		return "http://127.0.0.1:3338"
	}

	u := &url.URL{Scheme: "http", Host: mintHost + ":" + mintPort}
	return u.String()
}

func setupWallet(ctx *cli.Context) error {
	config := walletConfig()

	var err error
	nutw, err = wallet.LoadWallet(config)
	if err != nil {
		printErr(err)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "nutw",
		Usage: "cashu wallet",
		Commands: []*cli.Command{
			balanceCmd,
			mintCmd,
			sendCmd,
			receiveCmd,
			payCmd,
			p2pkLockCmd,
			mnemonicCmd,
			restoreCmd,
			decodeCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Usage:  "Wallet balance",
	Before: setupWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	fmt.Printf("mint: %v\n", nutw.CurrentMint())
	fmt.Printf("balance: %v sats\n", nutw.Balance())
	return nil
}

var receiveCmd = &cli.Command{
	Name:      "receive",
	Usage:     "Receive token",
	ArgsUsage: "[TOKEN]",
	Before:    setupWallet,
	Action:    receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("token not provided"))
	}
	serializedToken := args.First()

	token, err := cashu.DecodeToken(serializedToken)
	if err != nil {
		printErr(err)
	}

	receivedAmount, err := nutw.Receive(token)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("%v sats received\n", receivedAmount)
	return nil
}

const quoteFlag = "quote"

var mintCmd = &cli.Command{
	Name:      "mint",
	Usage:     "Request mint quote. It will return a lightning invoice to be paid",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  quoteFlag,
			Usage: "redeem a previously paid mint quote for AMOUNT",
		},
	},
	Action: mint,
}

func mint(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}

	if ctx.IsSet(quoteFlag) {
		if err := mintTokens(ctx.String(quoteFlag), amount); err != nil {
			printErr(err)
		}
		return nil
	}

	if err := requestMint(amount); err != nil {
		printErr(err)
	}
	return nil
}

func requestMint(amount uint64) error {
	quoteResponse, err := nutw.RequestMintQuote(amount)
	if err != nil {
		return err
	}

	fmt.Printf("invoice: %v\n\n", quoteResponse.Request)
	fmt.Printf("quote id: %v\n", quoteResponse.Quote)
	fmt.Println("after paying the invoice, redeem the ecash with: nutw mint --quote <quote id> <amount>")
	return nil
}

func mintTokens(quoteId string, amount uint64) error {
	proofs, err := nutw.Mint(quoteId, amount)
	if err != nil {
		return err
	}

	fmt.Printf("%v sats successfully minted\n", proofs.Amount())
	return nil
}

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "Generates token to be sent for the specified amount",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "memo",
			Usage: "optional memo to attach to the token",
		},
	},
	Action: send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	sendAmount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(err)
	}

	token, err := nutw.Send(sendAmount, ctx.String("memo"))
	if err != nil {
		printErr(err)
	}

	serialized, err := token.Serialize()
	if err != nil {
		printErr(err)
	}

	fmt.Printf("%v\n", serialized)
	return nil
}

var payCmd = &cli.Command{
	Name:      "pay",
	Usage:     "Pay a lightning invoice",
	ArgsUsage: "[INVOICE]",
	Before:    setupWallet,
	Action:    pay,
}

func pay(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a lightning invoice to pay"))
	}
	invoice := args.First()

	if _, err := decodepay.Decodepay(invoice); err != nil {
		printErr(fmt.Errorf("invalid invoice: %v", err))
	}

	result, err := nutw.Melt(invoice)
	if err != nil {
		printErr(err)
	}

	switch result.State {
	case nut05.Paid:
		fmt.Println("invoice paid")
	case nut05.Pending:
		fmt.Println("payment pending, check back later")
	default:
		fmt.Println("payment failed")
	}
	return nil
}

var p2pkLockCmd = &cli.Command{
	Name:   "p2pk-lock",
	Usage:  "Retrieves a public key to which ecash can be locked",
	Before: setupWallet,
	Action: p2pkLock,
}

func p2pkLock(ctx *cli.Context) error {
	lockpubkey, err := nutw.ReceivePubkey()
	if err != nil {
		printErr(err)
	}

	fmt.Printf("Pay to Public Key (P2PK) lock: %v\n\n", hex.EncodeToString(lockpubkey.SerializeCompressed()))
	fmt.Println("You can unlock ecash locked to this public key")
	return nil
}

var mnemonicCmd = &cli.Command{
	Name:   "mnemonic",
	Usage:  "Mnemonic to restore wallet",
	Before: setupWallet,
	Action: mnemonic,
}

func mnemonic(ctx *cli.Context) error {
	fmt.Printf("mnemonic: %v\n", nutw.Mnemonic())
	return nil
}

var restoreCmd = &cli.Command{
	Name:   "restore",
	Usage:  "Restore wallet from mnemonic",
	Action: restore,
}

func restore(ctx *cli.Context) error {
	config := walletConfig()
	fmt.Printf("enter mnemonic: ")

	reader := bufio.NewReader(os.Stdin)
	mnemonic, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal("error reading input, please try again")
	}
	mnemonic = mnemonic[:len(mnemonic)-1]

	restoredAmount, err := wallet.Restore(config.WalletPath, mnemonic, []string{config.CurrentMintURL})
	if err != nil {
		printErr(fmt.Errorf("error restoring wallet: %v", err))
	}

	fmt.Printf("restored proofs for amount of: %v\n", restoredAmount)
	return nil
}

var decodeCmd = &cli.Command{
	Name:      "decode",
	ArgsUsage: "[TOKEN]",
	Usage:     "Decode token",
	Action:    decode,
}

func decode(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("token not provided"))
	}
	serializedToken := args.First()

	token, err := cashu.DecodeToken(serializedToken)
	if err != nil {
		printErr(err)
	}

	jsonToken, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		printErr(err)
	}

	fmt.Println(string(jsonToken))
	return nil
}

func printErr(msg error) {
	fmt.Println(msg.Error())
	os.Exit(0)
}
