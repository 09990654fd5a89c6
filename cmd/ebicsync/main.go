package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ardelhq/ebics-sync/internal/config"
	"github.com/ardelhq/ebics-sync/internal/dedup"
	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/internal/ebics"
	"github.com/ardelhq/ebics-sync/internal/keystore"
	"github.com/ardelhq/ebics-sync/internal/logging"
	"github.com/ardelhq/ebics-sync/internal/recon"
	"github.com/ardelhq/ebics-sync/internal/report"
	"github.com/ardelhq/ebics-sync/internal/repository"
	"github.com/ardelhq/ebics-sync/internal/settle"
	"github.com/ardelhq/ebics-sync/internal/syncer"
)

const dateFormat = "2006-01-02"

func main() {
	// Command-line flags
	var (
		configFile   string
		connID       string
		payloadDir   string
		partiesFile  string
		docsFile     string
		runsFile     string
		outputFile   string
		prettyPrint  bool
		generateKeys bool
		sendINI      bool
		sendHIA      bool
		letter       bool
		confirm      bool
		downloadHPB  bool
		reset        bool
		doSync       bool
		fromStr      string
		toStr        string
		holderName   string
		holderOrg    string
		holderCtry   string
		holderCity   string
	)

	flag.StringVar(&configFile, "config", "config.yaml", "Path to YAML configuration file")
	flag.StringVar(&connID, "conn", "", "Connection id from the configuration")
	flag.StringVar(&payloadDir, "payload-dir", "payloads", "Directory the file client reads statement payloads from")
	flag.StringVar(&partiesFile, "parties", "", "Path to parties CSV export")
	flag.StringVar(&docsFile, "documents", "", "Path to open documents CSV export")
	flag.StringVar(&runsFile, "payment-runs", "", "Path to payment runs CSV export (optional)")
	flag.StringVar(&outputFile, "output", "", "Path to output file (if empty, writes to stdout)")
	flag.BoolVar(&prettyPrint, "pretty", true, "Pretty print JSON output")

	flag.BoolVar(&generateKeys, "generate-keys", false, "Generate the connection's key material")
	flag.BoolVar(&sendINI, "send-ini", false, "Send the INI order")
	flag.BoolVar(&sendHIA, "send-hia", false, "Send the HIA order")
	flag.BoolVar(&letter, "letter", false, "Render the initialization letter")
	flag.BoolVar(&confirm, "confirm-activation", false, "Record that the bank has activated the user")
	flag.BoolVar(&downloadHPB, "download-hpb", false, "Download the bank's public keys")
	flag.BoolVar(&reset, "reset", false, "Reset the activation workflow")
	flag.BoolVar(&doSync, "sync", false, "Sync statements for a date range")
	flag.StringVar(&fromStr, "from", "", "Sync start date (YYYY-MM-DD)")
	flag.StringVar(&toStr, "to", "", "Sync end date (YYYY-MM-DD, defaults to -from)")

	flag.StringVar(&holderName, "name", "", "Account holder name for the letter")
	flag.StringVar(&holderOrg, "organization", "", "Organization for the letter")
	flag.StringVar(&holderCtry, "country", "CH", "Country code for the letter")
	flag.StringVar(&holderCity, "locality", "", "Locality for the letter")

	flag.Parse()

	if connID == "" {
		exitWithError("Connection id is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError(fmt.Sprintf("Loading configuration failed: %v", err))
	}

	cc, err := cfg.Connection(connID)
	if err != nil {
		exitWithError(err.Error())
	}

	log := logging.New()
	ctx := context.Background()

	conns := repository.NewFileConnectionRepository(filepath.Join(cfg.KeyDir, "connections.json"))
	if err := conns.Seed(&domain.Connection{
		ID:            cc.ID,
		HostID:        cc.HostID,
		PartnerID:     cc.PartnerID,
		UserID:        cc.UserID,
		URL:           cc.URL,
		Version:       cc.Version,
		KeyRef:        cc.ID,
		PassphraseRef: cc.ID,
	}); err != nil {
		exitWithError(fmt.Sprintf("Seeding connection state failed: %v", err))
	}

	keys := keystoreFor(cfg)
	client := ebics.NewFileClient(payloadDir)
	machine := ebics.NewMachine(client, keys, conns, log)

	conn, err := conns.GetConnection(cc.ID)
	if err != nil {
		exitWithError(err.Error())
	}

	if reset {
		if err := machine.Reset(conn); err != nil {
			exitWithError(fmt.Sprintf("Reset failed: %v", err))
		}
	}

	if generateKeys {
		if err := machine.GenerateKeys(conn); err != nil {
			exitWithError(fmt.Sprintf("Key generation failed: %v", err))
		}
	}

	if sendINI {
		outcome, err := machine.SendINI(ctx, conn)
		if err != nil {
			exitWithError(fmt.Sprintf("INI failed: %v", err))
		}
		reportOutcome("INI", outcome)
	}

	if sendHIA {
		outcome, err := machine.SendHIA(ctx, conn)
		if err != nil {
			exitWithError(fmt.Sprintf("HIA failed: %v", err))
		}
		reportOutcome("HIA", outcome)
	}

	if letter {
		text, err := machine.GenerateLetter(conn, ebics.Identity{
			Name:         holderName,
			Organization: holderOrg,
			Country:      holderCtry,
			Locality:     holderCity,
		})
		if err != nil {
			exitWithError(fmt.Sprintf("Letter rendering failed: %v", err))
		}
		if err := writeOutput(outputFile, "txt", []byte(text)); err != nil {
			exitWithError(err.Error())
		}
	}

	if confirm {
		if err := machine.ConfirmBankActivation(conn); err != nil {
			exitWithError(fmt.Sprintf("Recording activation failed: %v", err))
		}
	}

	if downloadHPB {
		if err := machine.DownloadHPB(ctx, conn); err != nil {
			exitWithError(fmt.Sprintf("HPB download failed: %v", err))
		}
	}

	if doSync {
		if partiesFile == "" || docsFile == "" {
			exitWithError("Sync requires -parties and -documents CSV exports")
		}
		if fromStr == "" {
			exitWithError("Sync requires a -from date")
		}
		from, err := time.Parse(dateFormat, fromStr)
		if err != nil {
			exitWithError(fmt.Sprintf("Invalid from date: %v", err))
		}
		to := from
		if toStr != "" {
			if to, err = time.Parse(dateFormat, toStr); err != nil {
				exitWithError(fmt.Sprintf("Invalid to date: %v", err))
			}
		}
		if to.Before(from) {
			exitWithError("End date must not be before start date")
		}

		result, err := runSync(ctx, cfg, cc, conns, client, partiesFile, docsFile, runsFile, from, to, log)
		if err != nil {
			exitWithError(fmt.Sprintf("Sync failed: %v", err))
		}

		output, err := report.NewJSONFormatter(prettyPrint).Format(result)
		if err != nil {
			exitWithError(fmt.Sprintf("Failed to format output: %v", err))
		}
		if err := writeOutput(outputFile, "json", output); err != nil {
			exitWithError(err.Error())
		}
	}

	fmt.Fprintf(os.Stderr, "Connection %s is in state %s\n", conn.ID, conn.State())
}

// keystoreFor builds the key store with passphrases resolved from the
// configuration, keyed by connection id.
func keystoreFor(cfg *config.Config) *keystore.Store {
	passphrases := map[string]string{}
	for _, cc := range cfg.Connections {
		passphrases[cc.ID] = cc.Passphrase
	}
	return keystore.NewStore(cfg.KeyDir, func(ref string) string {
		return passphrases[ref]
	})
}

// runSync wires the statement pipeline for one run
func runSync(
	ctx context.Context,
	cfg *config.Config,
	cc *config.ConnectionConfig,
	conns domain.ConnectionRepository,
	client ebics.Client,
	partiesFile, docsFile, runsFile string,
	from, to time.Time,
	log zerolog.Logger,
) (*syncer.Result, error) {
	store := repository.NewMemoryStore()
	parties := repository.NewCSVPartyRepository(partiesFile)
	documents := repository.NewCSVDocumentRepository(docsFile)

	var runs domain.PaymentRunRepository = store
	if runsFile != "" {
		runs = repository.NewCSVPaymentRunRepository(runsFile)
	}

	engine := recon.NewEngine(parties, documents, runs, recon.Config{
		NumericOnly:      cfg.Matching.NumericOnly,
		IgnoreDiacritics: cfg.Matching.IgnoreDiacritics,
		NameDistanceMax:  cfg.Matching.NameDistanceMax,
	}, log)

	materializer := settle.NewMaterializer(
		repository.NewSettlementRecorder(store),
		store, store, parties, documents,
		settle.Accounts{
			Bank:           cfg.Settlement.Accounts.Bank,
			Payable:        cfg.Settlement.Accounts.Payable,
			Receivable:     cfg.Settlement.Accounts.Receivable,
			PayrollPayable: cfg.Settlement.Accounts.PayrollPayable,
		},
		cfg.Settlement.AutoSubmit, log)

	s := syncer.New(client, conns, store, store,
		dedup.NewDeduper(store, store), engine, materializer,
		orderType(cc.OrderType), cfg.HomeCurrency, cfg.Sync.AllowDateDrift, log)

	return s.Sync(ctx, cc.ID, from, to)
}

// orderType maps the configured order type, defaulting to C53
func orderType(s string) ebics.OrderType {
	switch strings.ToUpper(s) {
	case "Z53":
		return ebics.OrderZ53
	case "", "C53":
		return ebics.OrderC53
	default:
		return ebics.OrderType(strings.ToUpper(s))
	}
}

func reportOutcome(order string, outcome ebics.Outcome) {
	if outcome.AwaitingActivation {
		fmt.Fprintf(os.Stderr, "%s transmitted, awaiting bank activation (code %s)\n", order, outcome.Code)
		return
	}
	fmt.Fprintf(os.Stderr, "%s accepted (code %s)\n", order, outcome.Code)
}

func writeOutput(outputFile, extension string, output []byte) error {
	if outputFile == "" {
		fmt.Println(string(output))
		return nil
	}
	if !strings.Contains(outputFile, ".") {
		outputFile = fmt.Sprintf("%s.%s", outputFile, extension)
	}
	if err := os.WriteFile(outputFile, output, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func exitWithError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Run with -h flag for usage information.\n")
	os.Exit(1)
}
