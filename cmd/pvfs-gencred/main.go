// Command pvfs-gencred mints and signs a credential, and optionally a
// capability derived from it, using the same BLAKE2b-keyed signing scheme
// internal/cred verifies requests against.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/pvfsgo/internal/cli/output"
	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/handle"
)

var (
	keyFile  string
	uid      uint32
	groups   string
	issuer   string
	ttl      time.Duration
	handleHex string
	ops      string
	capTTL   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "pvfs-gencred",
	Short:         "Mint and sign a credential, and optionally a capability",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&keyFile, "key-file", "pvfs.key", "signing key file (generated if absent)")
	rootCmd.Flags().Uint32Var(&uid, "uid", 0, "credential user id")
	rootCmd.Flags().StringVar(&groups, "groups", "0", "comma-separated group ids")
	rootCmd.Flags().StringVar(&issuer, "issuer", "pvfs-gencred", "credential issuer string")
	rootCmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "credential validity")
	rootCmd.Flags().StringVar(&handleHex, "handle", "", "also mint a capability for this handle (hex)")
	rootCmd.Flags().StringVar(&ops, "ops", "read,write", "comma-separated ops the capability allows: read,write,create,remove,setattr,admin")
	rootCmd.Flags().DurationVar(&capTTL, "cap-ttl", time.Hour, "capability validity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pvfs-gencred:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	groupIDs, err := parseUint32List(groups)
	if err != nil {
		return fmt.Errorf("--groups: %w", err)
	}

	c := cred.Credential{
		UID:      uid,
		Groups:   groupIDs,
		Issuer:   issuer,
		Deadline: time.Now().Add(ttl),
	}
	if err := c.Sign(key); err != nil {
		return fmt.Errorf("sign credential: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := output.SimpleTable(out, [][2]string{
		{"uid", strconv.FormatUint(uint64(c.UID), 10)},
		{"groups", groups},
		{"issuer", c.Issuer},
		{"deadline", c.Deadline.Format(time.RFC3339)},
		{"signature", fmt.Sprintf("%x", c.Signature)},
	}); err != nil {
		return err
	}

	if handleHex == "" {
		return nil
	}

	h, err := handle.ParseHandle(handleHex)
	if err != nil {
		return fmt.Errorf("--handle: %w", err)
	}
	mask, err := parseOpMask(ops)
	if err != nil {
		return fmt.Errorf("--ops: %w", err)
	}

	capVal := cred.Capability{
		Handles:  []handle.Handle{h},
		OpMask:   mask,
		Owner:    c,
		Deadline: time.Now().Add(capTTL),
	}
	// The capability is signed under the owning credential's own signature
	// so it cannot be forged independently of the credential that vouches
	// for it.
	if err := capVal.Sign(c.Signature[:]); err != nil {
		return fmt.Errorf("sign capability: %w", err)
	}

	fmt.Fprintln(out)
	return output.SimpleTable(out, [][2]string{
		{"handle", h.String()},
		{"ops", ops},
		{"deadline", capVal.Deadline.Format(time.RFC3339)},
		{"signature", fmt.Sprintf("%x", capVal.Signature)},
	})
}

func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) < 32 {
			return nil, fmt.Errorf("key file %s is shorter than 32 bytes", path)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}

func parseUint32List(s string) ([]uint32, error) {
	var out []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

func parseOpMask(s string) (cred.OpMask, error) {
	var mask cred.OpMask
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "read":
			mask |= cred.OpRead
		case "write":
			mask |= cred.OpWrite
		case "create":
			mask |= cred.OpCreate
		case "remove":
			mask |= cred.OpRemove
		case "setattr":
			mask |= cred.OpSetAttr
		case "admin":
			mask |= cred.OpAdmin
		case "":
			// ignore trailing commas
		default:
			return 0, fmt.Errorf("unknown op %q", part)
		}
	}
	return mask, nil
}
