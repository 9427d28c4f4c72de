// Command pvfs-rmit destroys an object's handle. Unlike pvfs-touch, which
// allocates a handle nothing else can yet contend on, REMOVE targets an
// existing handle, so pvfs-rmit books a write ticket with the request
// scheduler and waits for admission before driving the wire round trip,
// mirroring how a real server's REMOVE handler would gate against
// concurrent operations on the same object.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/pvfsgo/internal/cli/output"
	"github.com/marmos91/pvfsgo/internal/cli/prompt"
	"github.com/marmos91/pvfsgo/internal/climachine"
	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/demopeer"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/jobs"
	"github.com/marmos91/pvfsgo/internal/sched"
	"github.com/marmos91/pvfsgo/internal/statemachine"
	"github.com/marmos91/pvfsgo/internal/threadmgr"
	"github.com/marmos91/pvfsgo/internal/wire"
)

var (
	addr       string
	fsid       uint32
	handleHex  string
	keyFile    string
	uid        uint32
	timeout    time.Duration
	force      bool
)

var rootCmd = &cobra.Command{
	Use:           "pvfs-rmit",
	Short:         "Destroy an object's handle via a REMOVE round trip",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", "server-1", "peer address passed to the job engine")
	rootCmd.Flags().Uint32Var(&fsid, "fsid", 1, "filesystem id the handle belongs to")
	rootCmd.Flags().StringVar(&handleHex, "handle", "", "handle to remove (hex, required)")
	rootCmd.Flags().StringVar(&keyFile, "key-file", "pvfs.key", "signing key file (generated if absent)")
	rootCmd.Flags().Uint32Var(&uid, "uid", 0, "requesting credential's user id")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "overall round-trip timeout")
	rootCmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	_ = rootCmd.MarkFlagRequired("handle")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pvfs-rmit:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	target, err := handle.ParseHandle(handleHex)
	if err != nil {
		return fmt.Errorf("--handle: %w", err)
	}

	if !force {
		ok, err := prompt.ConfirmDanger(fmt.Sprintf("remove handle %s on fsid %d", target, fsid), target.String())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	key, err := loadOrCreateSigningKey(keyFile)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	c := cred.Credential{UID: uid, Groups: []uint32{uid}, Issuer: "pvfs-rmit", Deadline: time.Now().Add(time.Hour)}
	if err := c.Sign(key); err != nil {
		return fmt.Errorf("sign credential: %w", err)
	}

	schedEngine := sched.NewEngine(config.Default().Scheduler)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	schedEngine.Start(ctx)
	defer schedEngine.Stop()

	postResult, err := schedEngine.Post(sched.Request{
		Op:     wire.OpRemove,
		FSID:   fsid,
		Handle: target,
		Access: sched.AccessWrite,
	})
	if err != nil {
		return fmt.Errorf("scheduler rejected request: %w", err)
	}
	if postResult.Outcome != sched.Immediate {
		if err := waitForAdmission(ctx, schedEngine, postResult.TicketID); err != nil {
			return fmt.Errorf("waiting for admission: %w", err)
		}
	}
	defer schedEngine.Release(postResult.TicketID)

	req := &wire.RemoveRequest{Credential: c, Ref: handle.Reference{Handle: target, FSID: fsid}}
	codec := wire.NewCodec(nil)
	reqBuf, err := codec.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	defer codec.ReleaseEncoded(reqBuf)

	peer := demopeer.New(func(r wire.Request) wire.Response {
		if _, ok := r.(*wire.RemoveRequest); !ok {
			return nil
		}
		return &wire.RemoveResponse{Status: 0}
	})

	cfg := *config.Default()
	engine := jobs.NewEngine(cfg, peer, demopeer.NewNoopStorage(), demopeer.NewNoopFlow(), nil)
	defer engine.Stop()

	mgr := threadmgr.New(peer, demopeer.NewNoopStorage(), demopeer.NewNoopFlow(), engine)
	mgr.Start(ctx)
	defer mgr.Stop()

	driver, err := statemachine.NewDriver(engine)
	if err != nil {
		return fmt.Errorf("open driver context: %w", err)
	}
	defer driver.Close()

	rt := &climachine.RoundTrip{Addr: addr, Request: reqBuf, Reply: make([]byte, 4096)}
	if err := climachine.Run(ctx, driver, rt, timeout); err != nil {
		return fmt.Errorf("round trip: %w", err)
	}

	decoded, err := codec.DecodeResponse(rt.Reply[:rt.ActualSize])
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	resp, ok := decoded.(*wire.RemoveResponse)
	if !ok {
		return fmt.Errorf("unexpected response type %T", decoded)
	}
	if resp.Status != 0 {
		return fmt.Errorf("server returned status %d", resp.Status)
	}

	return output.SimpleTable(cmd.OutOrStdout(), [][2]string{
		{"fsid", fmt.Sprintf("%d", fsid)},
		{"handle", target.String()},
		{"status", "removed"},
	})
}

// waitForAdmission blocks on the scheduler's event queue until the ticket
// promotes to ready, per sched.Engine's FIFO admission model.
func waitForAdmission(ctx context.Context, e *sched.Engine, ticketID uint64) error {
	for {
		events, err := e.TestWorld(ctx, 100*time.Millisecond, 0)
		if err != nil {
			return err
		}
		for _, evt := range events {
			if evt.Kind == sched.EventReady && evt.TicketID == ticketID {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func loadOrCreateSigningKey(path string) ([]byte, error) {
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
