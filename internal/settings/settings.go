// Package settings persists user preferences and the account lists as a
// JSON document.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"compta/internal/core"

	"github.com/spf13/viper"
)

// FileName is the default document name inside the data directory.
const FileName = "settings.json"

// Link ties a savings account to a current account.
type Link struct {
	Savings string `mapstructure:"savings"`
	Current string `mapstructure:"current"`
}

// Document is the persisted settings file.
type Document struct {
	DarkMode        bool     `mapstructure:"dark_mode"`
	StorageDir      string   `mapstructure:"storage_dir"`
	CurrentAccounts []string `mapstructure:"current_accounts"`
	SavingsAccounts []string `mapstructure:"savings_accounts"`
	LastCurrent     string   `mapstructure:"last_current"`
	LastSavings     string   `mapstructure:"last_savings"`
	SavingLinks     []Link   `mapstructure:"saving_links"`
}

// Defaults returns the document used when no file exists yet.
func Defaults() Document {
	return Document{
		CurrentAccounts: []string{core.FallbackCurrentAccount},
		SavingsAccounts: []string{},
	}
}

// Load reads the document at path. A missing file yields Defaults.
func Load(path string) (Document, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("dark_mode", d.DarkMode)
	v.SetDefault("storage_dir", d.StorageDir)
	v.SetDefault("current_accounts", d.CurrentAccounts)
	v.SetDefault("savings_accounts", d.SavingsAccounts)
	v.SetDefault("last_current", "")
	v.SetDefault("last_savings", "")
	v.SetConfigType("json")
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return Document{}, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var out Document
	if err := v.Unmarshal(&out); err != nil {
		return Document{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return out, nil
}

// Save writes the document to path, creating its directory if needed.
func Save(path string, d Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir settings dir: %w", err)
	}

	links := make([]map[string]string, 0, len(d.SavingLinks))
	for _, l := range d.SavingLinks {
		links = append(links, map[string]string{"savings": l.Savings, "current": l.Current})
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("dark_mode", d.DarkMode)
	v.Set("storage_dir", d.StorageDir)
	v.Set("current_accounts", nonNil(d.CurrentAccounts))
	v.Set("savings_accounts", nonNil(d.SavingsAccounts))
	v.Set("last_current", d.LastCurrent)
	v.Set("last_savings", d.LastSavings)
	v.Set("saving_links", links)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Registry builds an account registry from the document.
func (d Document) Registry() *core.AccountRegistry {
	reg := core.NewAccountRegistry(d.CurrentAccounts, d.SavingsAccounts)
	for _, l := range d.SavingLinks {
		reg.Link(l.Savings, l.Current)
	}
	return reg
}

// WithRegistry returns a copy of d holding the registry's accounts and links.
func (d Document) WithRegistry(reg *core.AccountRegistry) Document {
	d.CurrentAccounts = reg.Accounts(core.Current)
	d.SavingsAccounts = reg.Accounts(core.Savings)
	d.SavingLinks = nil
	for _, l := range reg.Links() {
		d.SavingLinks = append(d.SavingLinks, Link{Savings: l.Savings, Current: l.Current})
	}
	return d
}
