// Command keyfields prints the configuration encodings of a service account
// private key: escaped newlines, base64 PEM, and the key split across two
// values for platforms that limit value length.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chinmina/google-token-provider/internal/assertion"
	"github.com/chinmina/google-token-provider/internal/credential"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	KeyFile string `env:"KEYFIELDS_KEY_FILE, required"`
	Email   string `env:"KEYFIELDS_SERVICE_ACCOUNT_EMAIL"`

	// Format is "env" for shell assignments, or "yaml" for a values file.
	Format string `env:"KEYFIELDS_FORMAT, default=env"`

	// SplitAt is the length of the first part. Zero splits in half.
	SplitAt int `env:"KEYFIELDS_SPLIT_AT, default=0"`
}

// KeyFields are the accepted encodings of one key.
type KeyFields struct {
	Escaped string
	Base64  string
	Parts   [2]string
}

func main() {
	cfg := Config{}
	err := envconfig.Process(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	keyPEM, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading key: %v\n", err)
		os.Exit(1)
	}

	fields, err := Encode(string(keyPEM), cfg.SplitAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error encoding key: %v\n", err)
		os.Exit(1)
	}

	if err := Write(os.Stdout, cfg.Format, cfg.Email, fields); err != nil {
		fmt.Fprintf(os.Stderr, "error writing fields: %v\n", err)
		os.Exit(1)
	}
}

// Encode validates the PEM key and returns its encodings. The key must be
// an RSA key usable for signing.
func Encode(keyPEM string, splitAt int) (KeyFields, error) {
	keyPEM = strings.TrimSpace(keyPEM) + "\n"

	der, _, err := credential.NormalizeKey(keyPEM)
	if err != nil {
		return KeyFields{}, err
	}
	if _, err := assertion.NewRSASigner(der); err != nil {
		return KeyFields{}, err
	}

	escaped := strings.ReplaceAll(keyPEM, "\n", `\n`)

	if splitAt <= 0 {
		splitAt = len(escaped) / 2
	}
	if splitAt >= len(escaped) {
		return KeyFields{}, fmt.Errorf("split point %d must be less than the key length %d", splitAt, len(escaped))
	}

	return KeyFields{
		Escaped: escaped,
		Base64:  base64.StdEncoding.EncodeToString([]byte(keyPEM)),
		Parts:   [2]string{escaped[:splitAt], escaped[splitAt:]},
	}, nil
}

// Write prints the fields under their conventional names.
func Write(out io.Writer, format, email string, fields KeyFields) error {
	names := credential.DefaultFields()

	switch format {
	case "yaml":
		doc := map[string]string{
			names.PrivateKey: fields.Base64,
		}
		if email != "" {
			doc[names.Email] = email
		}
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(doc)

	case "env":
		lines := []string{
			"# single value, escaped newlines",
			fmt.Sprintf("%s='%s'", names.PrivateKey, fields.Escaped),
			"# single value, base64",
			fmt.Sprintf("%s='%s'", names.PrivateKey, fields.Base64),
			"# split across two values",
			fmt.Sprintf("%s='%s'", names.PrivateKeyParts[0], fields.Parts[0]),
			fmt.Sprintf("%s='%s'", names.PrivateKeyParts[1], fields.Parts[1]),
		}
		if email != "" {
			lines = append([]string{fmt.Sprintf("%s='%s'", names.Email, email)}, lines...)
		}
		_, err := fmt.Fprintln(out, strings.Join(lines, "\n"))
		return err

	default:
		return fmt.Errorf("unknown format %q: must be \"env\" or \"yaml\"", format)
	}
}
