package koji

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kolo/xmlrpc"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrNoHub is returned when no hub URL is configured
var ErrNoHub = errors.New("build system hub URL is not set")

// caller is the subset of *xmlrpc.Client used by Client
type caller interface {
	Call(serviceMethod string, args interface{}, reply interface{}) error
}

// Fault is a per-call failure inside a multicall
type Fault struct {
	Method string
	Index  int
	Code   int
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s call #%d failed: fault %d: %s", f.Method, f.Index, f.Code, f.String)
}

// Options configures a Client
type Options struct {
	// Retry controls retries of HTTP round trips to the hub
	Retry RetryConfig
	// MulticallChunk splits multicalls into chunks of this many calls; 0 sends one multicall
	MulticallChunk int
	// Parallelism bounds concurrent chunk requests
	Parallelism int
	// Transport is the underlying HTTP transport; defaults to http.DefaultTransport
	Transport http.RoundTripper
}

// DefaultOptions returns options that send every batch as a single multicall
func DefaultOptions() Options {
	return Options{
		Retry:       DefaultRetryConfig(),
		Parallelism: 4,
	}
}

// Client queries a Koji-style build system hub over XML-RPC
type Client struct {
	hubURL string
	opts   Options
	dial   func(ctx context.Context) (caller, error)
}

// NewClient creates a new hub client
// Parameters:
// - hubURL: XML-RPC endpoint of the hub
// - opts: retry, batching and transport options
// Returns:
// - *Client: hub client
// - error: ErrNoHub if hubURL is empty
func NewClient(hubURL string, opts Options) (*Client, error) {
	if hubURL == "" {
		return nil, ErrNoHub
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	c := &Client{hubURL: hubURL, opts: opts}
	c.dial = func(ctx context.Context) (caller, error) {
		transport := &retryTransport{ctx: ctx, base: opts.Transport, config: opts.Retry}
		rpc, err := xmlrpc.NewClient(hubURL, transport)
		if err != nil {
			return nil, fmt.Errorf("failed to create xmlrpc client: %w", err)
		}
		return rpc, nil
	}
	return c, nil
}

// call is one entry of a system.multicall request
type call struct {
	method string
	params []interface{}
}

func (c call) encode() map[string]interface{} {
	return map[string]interface{}{"methodName": c.method, "params": c.params}
}

// kwargs marks a struct as keyword arguments for the hub
func kwargs(args map[string]interface{}) map[string]interface{} {
	args["__starstar"] = true
	return args
}

// multicall sends calls as system.multicall batches and returns one result per call, in order
func (c *Client) multicall(ctx context.Context, calls []call) ([]interface{}, error) {
	results := make([]interface{}, len(calls))
	if len(calls) == 0 {
		return results, nil
	}

	chunk := c.opts.MulticallChunk
	if chunk <= 0 || chunk > len(calls) {
		chunk = len(calls)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for start := 0; start < len(calls); start += chunk {
		end := min(start+chunk, len(calls))
		g.Go(func() error {
			return c.multicallChunk(gctx, calls[start:end], start, results[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) multicallChunk(ctx context.Context, calls []call, offset int, out []interface{}) error {
	logger := log.Ctx(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	rpc, err := c.dial(ctx)
	if err != nil {
		return err
	}

	encoded := make([]interface{}, len(calls))
	for i, cl := range calls {
		encoded[i] = cl.encode()
	}

	logger.Debug().
		Str("phase", "koji").
		Str("method", calls[0].method).
		Int("calls", len(calls)).
		Int("offset", offset).
		Msg("Sending multicall")

	var reply []interface{}
	if err := rpc.Call("system.multicall", []interface{}{encoded}, &reply); err != nil {
		return fmt.Errorf("multicall %s failed: %w", calls[0].method, err)
	}
	if len(reply) != len(calls) {
		return fmt.Errorf("multicall %s returned %d results for %d calls", calls[0].method, len(reply), len(calls))
	}

	for i, r := range reply {
		switch v := r.(type) {
		case []interface{}:
			if len(v) != 1 {
				return fmt.Errorf("multicall %s result #%d has %d values", calls[i].method, offset+i, len(v))
			}
			out[i] = v[0]
		case map[string]interface{}:
			return &Fault{
				Method: calls[i].method,
				Index:  offset + i,
				Code:   toInt(v["faultCode"]),
				String: toString(v["faultString"]),
			}
		default:
			return fmt.Errorf("multicall %s result #%d has unexpected type %T", calls[i].method, offset+i, r)
		}
	}
	return nil
}
