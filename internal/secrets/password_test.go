package secrets

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"talentmarket-engine/internal/config"
)

func TestFillPrefersEnvironment(t *testing.T) {
	keyring.MockInit()

	cfg := config.Default()
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.Username = "alerts"
	cfg.LLM.APIKey = "from-env"

	llmAcct, _ := Account(cfg, KindLLM)
	smtpAcct, _ := Account(cfg, KindSMTP)
	if err := Set(llmAcct, "from-keyring"); err != nil {
		t.Fatal(err)
	}
	if err := Set(smtpAcct, "smtp-pw"); err != nil {
		t.Fatal(err)
	}

	Fill(&cfg)
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("llm key = %q", cfg.LLM.APIKey)
	}
	if cfg.SMTP.Password != "smtp-pw" {
		t.Fatalf("smtp password = %q", cfg.SMTP.Password)
	}
	if cfg.IMAP.Password != "" {
		t.Fatal("imap is disabled and should stay empty")
	}
}

func TestAccountUnknownKind(t *testing.T) {
	if _, err := Account(config.Default(), "ftp"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v", err)
	}
}

func TestSetRejectsEmpty(t *testing.T) {
	keyring.MockInit()
	if err := Set("acct", "  "); err == nil {
		t.Fatal("expected error")
	}
	if err := Set("", "x"); err == nil {
		t.Fatal("expected error")
	}
}
