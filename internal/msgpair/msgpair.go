// Package msgpair implements the message-pair array (spec.md §4.5): the
// canonical nested machine that fans one or more parallel request/reply
// exchanges out to peer servers and collects every reply before
// proceeding, with bounded retry on a transient reply status.
package msgpair

import (
	"context"
	"time"

	"github.com/marmos91/pvfsgo/internal/config"
	"github.com/marmos91/pvfsgo/internal/jobs"
	"github.com/marmos91/pvfsgo/internal/logger"
)

// Classification is the action a pair's reply-completion function computes
// from the reply status.
type Classification int

const (
	ClassOK Classification = iota
	ClassRetry
	ClassFail
)

// ReplyClassifier inspects a pair's raw reply buffer and any network error,
// returning how the pair should proceed.
type ReplyClassifier func(reply []byte, netErr error) (Classification, error)

// Pair is one round trip to one peer server: target address with a
// replica index, a session tag, the fully-encoded request buffer, a
// preallocated receive buffer, and the job ids of its send/receive (and
// optionally flow/ack) legs.
type Pair struct {
	Address      string
	ReplicaIndex int
	SessionTag   uint64

	Request     []byte
	ReplyBuffer []byte

	Classify ReplyClassifier

	SendJobID uint64
	RecvJobID uint64
	FlowJobID uint64
	AckJobID  uint64

	RetryCount int

	Result PairResult
}

// PairResult is one pair's final outcome.
type PairResult struct {
	Class Classification
	Reply []byte
	Err   error
}

// Array is a set of pairs executed together; Run does not return until
// every pair has reached ClassOK or ClassFail (exhausted retries count as
// ClassFail).
type Array struct {
	Pairs []*Pair
	cfg   config.MessagePairConfig
}

// NewArray builds an array bound to cfg's retry limit and delay.
func NewArray(cfg config.MessagePairConfig, pairs []*Pair) *Array {
	return &Array{Pairs: pairs, cfg: cfg}
}

// Run drives every pair in the array to completion concurrently, posting
// each pair's send/receive through engine under contextID, retrying a pair
// classified ClassRetry up to cfg.RetryLimit times with cfg.RetryDelay
// between attempts (implemented as a plain timer, the Go equivalent of the
// original's retry-delay timer post). It returns once every pair has
// settled.
func Run(ctx context.Context, engine *jobs.Engine, contextID int, timeout time.Duration, array *Array) []PairResult {
	results := make([]PairResult, len(array.Pairs))
	done := make(chan struct{}, len(array.Pairs))

	for i, p := range array.Pairs {
		go func(i int, p *Pair) {
			results[i] = runPair(ctx, engine, contextID, timeout, array.cfg, p)
			done <- struct{}{}
		}(i, p)
	}
	for range array.Pairs {
		<-done
	}
	return results
}

func runPair(ctx context.Context, engine *jobs.Engine, contextID int, timeout time.Duration, cfg config.MessagePairConfig, p *Pair) PairResult {
	for attempt := 0; ; attempt++ {
		class, reply, err := sendReceiveOnce(ctx, engine, contextID, timeout, p)
		if class == ClassOK || class == ClassFail {
			p.Result = PairResult{Class: class, Reply: reply, Err: err}
			return p.Result
		}

		// ClassRetry
		if attempt >= cfg.RetryLimit {
			logger.Warn("msgpair: retry limit exhausted", "address", p.Address, "attempts", attempt+1)
			p.Result = PairResult{Class: ClassFail, Err: err}
			return p.Result
		}
		p.RetryCount++
		logger.Debug("msgpair: retrying pair", "address", p.Address, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			p.Result = PairResult{Class: ClassFail, Err: ctx.Err()}
			return p.Result
		case <-time.After(cfg.RetryDelay):
		}
	}
}

func sendReceiveOnce(ctx context.Context, engine *jobs.Engine, contextID int, timeout time.Duration, p *Pair) (Classification, []byte, error) {
	sendRes := engine.PostNetworkSend(contextID, p.Address, p.Request, timeout, p.SessionTag, nil)
	if sendRes.Outcome == jobs.Failed {
		return ClassFail, nil, sendRes.Err
	}
	p.SendJobID = sendRes.JobID
	if sendRes.Outcome == jobs.Posted {
		sendJob, err := engine.Test(ctx, sendRes.JobID, timeout)
		if err != nil {
			return ClassFail, nil, err
		}
		if sendJob.Network.Err != nil {
			return ClassFail, nil, sendJob.Network.Err
		}
	}

	recvRes := engine.PostNetworkRecv(contextID, p.Address, p.ReplyBuffer, timeout, p.SessionTag, nil)
	if recvRes.Outcome == jobs.Failed {
		return ClassFail, nil, recvRes.Err
	}
	p.RecvJobID = recvRes.JobID

	var netErr error
	var actualSize int
	if recvRes.Outcome == jobs.Posted {
		recvJob, err := engine.Test(ctx, recvRes.JobID, timeout)
		if err != nil {
			return ClassFail, nil, err
		}
		netErr = recvJob.Network.Err
		actualSize = recvJob.Network.ActualSize
	}

	reply := p.ReplyBuffer
	if actualSize > 0 && actualSize <= len(reply) {
		reply = reply[:actualSize]
	}

	if p.Classify == nil {
		if netErr != nil {
			return ClassFail, reply, netErr
		}
		return ClassOK, reply, nil
	}
	class, err := p.Classify(reply, netErr)
	return class, reply, err
}
