package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"talentmarket-engine/internal/config"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "talentmarket"

	KindLLM  = "llm"
	KindSMTP = "smtp"
	KindIMAP = "imap"
)

var ErrUnknownKind = errors.New("unknown secret kind")

// Account returns the keychain account a secret kind is stored under.
func Account(cfg config.Config, kind string) (string, error) {
	switch kind {
	case KindLLM:
		return "talentmarket:llm:" + cfg.LLM.Model, nil
	case KindSMTP:
		return fmt.Sprintf("talentmarket:smtp:%s@%s", cfg.SMTP.Username, cfg.SMTP.Host), nil
	case KindIMAP:
		return fmt.Sprintf("talentmarket:imap:%s@%s", cfg.IMAP.Username, cfg.IMAP.Host), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func Set(account, secret string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, secret)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// Fill loads secrets the environment did not provide from the keychain.
// Missing entries are left empty; the caller decides whether that matters.
func Fill(cfg *config.Config) {
	fill := func(kind string, dst *string) {
		if *dst != "" {
			return
		}
		acct, err := Account(*cfg, kind)
		if err != nil {
			return
		}
		if v, err := Get(acct); err == nil {
			*dst = v
		}
	}
	fill(KindLLM, &cfg.LLM.APIKey)
	if cfg.SMTP.Host != "" {
		fill(KindSMTP, &cfg.SMTP.Password)
	}
	if cfg.IMAP.Enabled {
		fill(KindIMAP, &cfg.IMAP.Password)
	}
}
