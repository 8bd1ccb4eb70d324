package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	relayer "github.com/BananaLF/relayer-utils"
	"github.com/BananaLF/relayer-utils/dns"
	"github.com/BananaLF/relayer-utils/utils"
)

func main() {
	var (
		emailPath   = flag.String("email", "", "path to the raw RFC 5322 email file")
		accountCode = flag.String("account-code", "", "account code as 0x-prefixed 64 hex characters")
		configPath  = flag.String("config", "", "path to a YAML config file (optional)")
		includeBody = flag.Bool("include-body", false, "include the canonicalized body in the circuit inputs")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *emailPath == "" || *accountCode == "" {
		logger.Error("both -email and -account-code are required")
		flag.Usage()
		os.Exit(2)
	}

	var (
		cfg *Config
		err error
	)
	if *configPath != "" {
		cfg, err = LoadFromFile(*configPath)
	} else {
		cfg, err = Load()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *includeBody {
		cfg.Circuit.IncludeBody = true
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))

	requestID := utils.GenerateID()
	logger = logger.With("request_id", requestID)

	resolver := dns.NewResolver(dns.ResolverConfig{
		Nameservers: cfg.DNS.Nameservers,
		DNSSEC:      cfg.DNS.DNSSEC,
		Timeout:     cfg.DNS.Timeout,
	})

	raw, err := os.ReadFile(*emailPath)
	if err != nil {
		logger.Error("failed to read email file", "error", err)
		os.Exit(1)
	}

	gen := &relayer.Generator{
		Resolver:              resolver,
		MaxHeaderLength:       cfg.Circuit.MaxHeaderLength,
		MaxBodyLength:         cfg.Circuit.MaxBodyLength,
		IncludeBody:           cfg.Circuit.IncludeBody,
		ShaPrecomputeSelector: cfg.Circuit.ShaPrecomputeSelector,
		MinRSAKeyBits:         cfg.Circuit.MinRSAKeyBits,
	}

	input, err := gen.GenerateEmailAuthInput(context.Background(), raw, *accountCode)
	if err != nil {
		logger.Error("failed to generate email auth input", "error", err)
		emit(relayer.ErrorResponse("failed to generate email auth input", err), requestID)
		os.Exit(1)
	}

	logger.Info("generated email auth input",
		"padded_header_len", input.PaddedHeaderLen,
		"from_addr_idx", input.FromAddrIdx,
		"subject_idx", input.SubjectIdx)

	encoded, err := input.ToJSON()
	if err != nil {
		logger.Error("failed to encode email auth input", "error", err)
		emit(relayer.ErrorResponse("failed to encode email auth input", err), requestID)
		os.Exit(1)
	}
	emit(relayer.SuccessResponse(encoded), requestID)
}

func emit(resp *relayer.Response, requestID string) {
	resp.RequestID = requestID
	fmt.Println(resp.ToJSON())
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
