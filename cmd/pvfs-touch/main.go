// Command pvfs-touch allocates a new metafile (and optional datafile)
// handle set by driving a CREATE request through the full job engine,
// thread manager and state-machine driver against an in-process loopback
// peer, exercising the same path a real client/server exchange would take.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/pvfsgo/internal/cli/output"
	"github.com/marmos91/pvfsgo/internal/climachine"
	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/cred"
	"github.com/marmos91/pvfsgo/internal/demopeer"
	"github.com/marmos91/pvfsgo/internal/handle"
	"github.com/marmos91/pvfsgo/internal/jobs"
	"github.com/marmos91/pvfsgo/internal/pvfsid"
	"github.com/marmos91/pvfsgo/internal/statemachine"
	"github.com/marmos91/pvfsgo/internal/threadmgr"
	"github.com/marmos91/pvfsgo/internal/wire"
)

var (
	addr      string
	fsid      uint32
	metaSID   uint32
	dataCount int
	keyFile   string
	uid       uint32
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "pvfs-touch",
	Short:         "Allocate a new handle set via a CREATE round trip",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", "server-1", "peer address passed to the job engine")
	rootCmd.Flags().Uint32Var(&fsid, "fsid", 1, "filesystem id to create the object under")
	rootCmd.Flags().Uint32Var(&metaSID, "meta-sid", 1, "replica server id for the metafile handle")
	rootCmd.Flags().IntVar(&dataCount, "data-handles", 0, "number of datafile handles to allocate")
	rootCmd.Flags().StringVar(&keyFile, "key-file", "pvfs.key", "signing key file (generated if absent)")
	rootCmd.Flags().Uint32Var(&uid, "uid", 0, "requesting credential's user id")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "overall round-trip timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pvfs-touch:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	key, err := loadOrCreateSigningKey(keyFile)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	c := cred.Credential{UID: uid, Groups: []uint32{uid}, Issuer: "pvfs-touch", Deadline: time.Now().Add(time.Hour)}
	if err := c.Sign(key); err != nil {
		return fmt.Errorf("sign credential: %w", err)
	}

	dataSIDs := make([]pvfsid.SIDArray, dataCount)
	for i := range dataSIDs {
		dataSIDs[i] = pvfsid.SIDArray{pvfsid.FromUint32(metaSID)}
	}

	req := &wire.CreateRequest{
		Credential: c,
		FSID:       fsid,
		MetaSIDs:   pvfsid.SIDArray{pvfsid.FromUint32(metaSID)},
		DataSIDs:   dataSIDs,
	}

	codec := wire.NewCodec(nil)
	reqBuf, err := codec.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	defer codec.ReleaseEncoded(reqBuf)

	peer := demopeer.New(func(r wire.Request) wire.Response {
		creq, ok := r.(*wire.CreateRequest)
		if !ok {
			return nil
		}
		resp := &wire.CreateResponse{
			MetaHandle:  randomHandle(),
			MetaSIDs:    creq.MetaSIDs,
			DataHandles: make([]handle.Handle, len(creq.DataSIDs)),
			DataSIDs:    creq.DataSIDs,
		}
		for i := range resp.DataHandles {
			resp.DataHandles[i] = randomHandle()
		}
		return resp
	})

	cfg := *config.Default()
	engine := jobs.NewEngine(cfg, peer, demopeer.NewNoopStorage(), demopeer.NewNoopFlow(), nil)
	defer engine.Stop()

	mgr := threadmgr.New(peer, demopeer.NewNoopStorage(), demopeer.NewNoopFlow(), engine)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
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
	resp, ok := decoded.(*wire.CreateResponse)
	if !ok {
		return fmt.Errorf("unexpected response type %T", decoded)
	}
	if resp.Status != 0 {
		return fmt.Errorf("server returned status %d", resp.Status)
	}

	rows := [][2]string{
		{"fsid", fmt.Sprintf("%d", fsid)},
		{"meta handle", resp.MetaHandle.String()},
	}
	for i, h := range resp.DataHandles {
		rows = append(rows, [2]string{fmt.Sprintf("data handle %d", i), h.String()})
	}
	return output.SimpleTable(cmd.OutOrStdout(), rows)
}

func randomHandle() handle.Handle {
	var h handle.Handle
	_, _ = rand.Read(h[:])
	return h
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
