/*

This file contains the fetcher contract: every fetcher kind produces metric
samples for one asset, narrowed by a scope to a single sub-target (one
lending market, one DEX pool, one feed). An invocation either returns all its
samples or none; partial persistence never happens at this layer.

*/

package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

// Kind identifies a fetcher implementation.
type Kind string

const (
	KindOracle       Kind = "oracle"
	KindReserve      Kind = "reserve"
	KindLiquidity    Kind = "liquidity"
	KindLending      Kind = "lending"
	KindDistribution Kind = "distribution"
	KindMarket       Kind = "market"
)

// Scope narrows a fetch to one sub-target of the asset's configuration.
// Exactly one of Lending, Pool, Feed, TokenAddress is set for targeted
// fetches; CrossChain selects the paired-feed lag computation, and reserve
// and market fetches operate on the whole section.
type Scope struct {
	Asset types.Asset
	Class types.FrequencyClass

	Lending      *types.LendingConfig
	Pool         *types.DexPool
	Feed         *types.OracleFeed
	TokenAddress *types.TokenAddress
	CrossChain   bool
}

// Target renders a short label for logging.
func (s Scope) Target() string {
	switch {
	case s.Lending != nil:
		return fmt.Sprintf("%s/%s/%s", s.Lending.Protocol, s.Lending.Chain, s.Lending.Anchor())
	case s.Pool != nil:
		return fmt.Sprintf("%s/%s/%s", s.Pool.Protocol, s.Pool.Chain, s.Pool.PoolAddress)
	case s.Feed != nil:
		return fmt.Sprintf("feed/%s/%s", s.Feed.Chain, s.Feed.Address)
	case s.TokenAddress != nil:
		return fmt.Sprintf("token/%s/%s", s.TokenAddress.Chain, s.TokenAddress.Address)
	case s.CrossChain:
		return "cross_chain_feeds"
	}
	return "asset"
}

// FetchError classifies an upstream failure. Retriable failures (timeouts,
// 5xx, RPC rate limits) may be retried by the dispatcher; terminal failures
// (4xx, schema mismatch) are recorded and skipped.
type FetchError struct {
	FetcherKind Kind
	Retriable   bool
	Cause       error
}

func (e *FetchError) Error() string {
	kind := "terminal"
	if e.Retriable {
		kind = "retriable"
	}
	return fmt.Sprintf("%s fetch failed (%s): %v", e.FetcherKind, kind, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// retriable wraps an upstream error as a retriable FetchError.
func retriable(kind Kind, err error) error {
	return &FetchError{FetcherKind: kind, Retriable: true, Cause: err}
}

// terminal wraps an upstream error as a terminal FetchError.
func terminal(kind Kind, err error) error {
	return &FetchError{FetcherKind: kind, Retriable: false, Cause: err}
}

// IsRetriable reports whether err is a retriable fetch failure. Context
// deadline expiry counts as retriable.
func IsRetriable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retriable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Fetcher is one pluggable metric producer. Implementations are synchronous
// per scope but may issue concurrent subrequests within the ctx deadline.
// A nil sample slice with nil error is a valid "nothing configured" result.
type Fetcher interface {
	Kind() Kind
	Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error)
}
