package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/ebfe/scard"

	"github.com/cardwerk/starcos/pkg/starcos"
)

const configFileName = "config.yaml"

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configPath := flag.String("config", configFileName, "path to the demo configuration")
	flag.Parse()

	// Configure slog
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// --- 1. Hardware Setup ---
	ctx, card := connectToCard(cfg)

	defer func() {
		if err := ctx.Release(); err != nil {
			log.Printf("Warning: Failed to release context: %v", err)
		}
	}()

	defer func() {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			log.Printf("Warning: Failed to disconnect card: %v", err)
		}
	}()

	// --- 2. Driver Matching ---
	status, err := card.Status()
	if err != nil {
		log.Fatalf("Error reading card status: %s", err)
	}

	fmt.Printf(">> ATR: %X\n", status.Atr)
	if !starcos.MatchATR(status.Atr) {
		log.Fatal("Card is not a STARCOS SPK 2.3 card; another driver must take it.")
	}

	drv, err := starcos.Connect(card)
	if err != nil {
		log.Fatalf("Error attaching driver: %s", err)
	}
	defer func() {
		if err := drv.Logout(); err != nil {
			log.Printf("Warning: Logout failed: %v", err)
		}
		if err := drv.Close(); err != nil {
			log.Printf("Warning: Close failed: %v", err)
		}
	}()

	fmt.Printf(">> Matched: %s (window %d/%d bytes)\n", drv.Name(), drv.MaxSendSize(), drv.MaxRecvSize())

	// --- 3. Execution Flow ---
	step1Serial(drv)
	step2Select(drv, cfg.Demo.SelectPath)
	step3GenerateKey(drv, cfg)

	fmt.Println("\n>> Demo Finished Successfully")
}

// =========================================================================
// Helper Functions
// =========================================================================

// connectToCard handles the PC/SC context establishment and reader
// connection.
func connectToCard(cfg *Config) (*scard.Context, *scard.Card) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		log.Fatalf("Error establishing context: %s", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatal("No smart card reader found.")
	}

	reader := pickReader(readers, cfg.Reader.Name)
	fmt.Printf(">> Using reader: %s\n", reader)

	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatalf("Error connecting to card: %s", err)
	}

	return ctx, card
}

// pickReader selects the configured reader, falling back to the first
// one available.
func pickReader(readers []string, name string) string {
	if name != "" {
		for _, r := range readers {
			if strings.Contains(strings.ToLower(r), strings.ToLower(name)) {
				return r
			}
		}
		log.Printf("Warning: no reader matches %q, using %s", name, readers[0])
	}
	return readers[0]
}

// step1Serial reads and prints the card serial number.
func step1Serial(drv *starcos.Card) {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 1: GET CARD DATA (Serial Number)")
	fmt.Println("=============================================")

	serial, err := drv.SerialNumber()
	if err != nil {
		log.Printf("(!) Serial number unavailable: %v", err)
		return
	}
	fmt.Printf(">> Serial: %X\n", serial)
}

// step2Select resolves the configured path and describes the result.
func step2Select(drv *starcos.Card, rawPath string) {
	fmt.Println("\n=============================================")
	fmt.Printf(" Step 2: SELECT FILE (%s)\n", rawPath)
	fmt.Println("=============================================")

	path, err := parsePath(rawPath)
	if err != nil {
		log.Printf("(!) Invalid path %q: %v", rawPath, err)
		return
	}

	file, err := drv.SelectFile(path)
	if err != nil {
		log.Printf("(!) Selection failed: %v", err)
		return
	}

	describeFile(file)
}

// step3GenerateKey optionally drives on-card key generation.
func step3GenerateKey(drv *starcos.Card, cfg *Config) {
	if cfg.Demo.GenerateKeyBits == 0 {
		fmt.Println("\n>> Step 3 Skipped: key generation not configured.")
		return
	}

	fmt.Println("\n=============================================")
	fmt.Printf(" Step 3: GENERATE KEY PAIR (%d bits, KID %02X)\n",
		cfg.Demo.GenerateKeyBits, cfg.Demo.GenerateKeyID)
	fmt.Println("=============================================")

	req := &starcos.GenerateKeyRequest{
		KeyID:   byte(cfg.Demo.GenerateKeyID),
		KeyBits: cfg.Demo.GenerateKeyBits,
	}
	if err := drv.Control(req); err != nil {
		log.Printf("(!) Key generation failed: %v", err)
		return
	}
	fmt.Printf(">> Public modulus: %X\n", req.Modulus)
}

// parsePath turns "3F00/DF01" into a path input for the navigator.
func parsePath(raw string) (starcos.Path, error) {
	var value []byte
	for _, part := range strings.Split(raw, "/") {
		part = strings.TrimSpace(part)
		b, err := hex.DecodeString(part)
		if err != nil || len(b) != 2 {
			return starcos.Path{}, fmt.Errorf("bad file id %q", part)
		}
		value = append(value, b...)
	}
	return starcos.Path{Kind: starcos.PathKindPath, Value: value}, nil
}

func describeFile(file *starcos.File) {
	switch file.Type {
	case starcos.FileTypeDF:
		fmt.Printf(">> Selected DF %04X", file.ID)
		if len(file.Name) > 0 {
			fmt.Printf(" (AID %X)", file.Name)
		}
		fmt.Println()
	default:
		structure := "unknown"
		switch file.Structure {
		case starcos.EFTransparent:
			structure = "transparent"
			if file.Object {
				structure = "object (read as transparent)"
			}
		case starcos.EFLinearFixed:
			structure = "linear fixed"
		case starcos.EFCyclic:
			structure = "cyclic"
		case starcos.EFComputeService:
			structure = "compute service"
		}
		fmt.Printf(">> Selected EF %04X | structure: %s", file.ID, structure)
		if file.Size > 0 {
			fmt.Printf(" | %d bytes", file.Size)
		}
		if file.RecordLength > 0 {
			fmt.Printf(" | record length %d", file.RecordLength)
		}
		fmt.Println()
	}
}
