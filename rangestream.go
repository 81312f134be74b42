package rangestream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/rangestream/config"
	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/internal/pool"
	"github.com/hupe1980/rangestream/metadata"
	"github.com/hupe1980/rangestream/pushdown"
	"github.com/hupe1980/rangestream/stream"
)

// prefetchKeepAlive is how long an idle prefetch worker above the core size
// stays alive.
const prefetchKeepAlive = 100 * time.Millisecond

// RangeStream is one planning session.
//
// StreamPlans classifies a predicate tree and Plans turns the result into
// scan plans. A RangeStream plans a single tree, its plans can be iterated
// once, and it must be closed to release its worker pools and scans.
//
// A RangeStream is not safe for concurrent use, except that Close may be
// called while no other method is running on another goroutine.
type RangeStream struct {
	cfg      *config.Query
	helper   metadata.Helper
	sessions *sessions
	opts     options
	logger   *Logger

	// lookups resolves sibling scans; prefetch runs background batch
	// fetches of open scans.
	lookups  *pool.WorkerPool
	prefetch *pool.WorkerPool

	tree    *expr.Node
	root    stream.IndexStream
	context stream.Context
	planned bool

	consumed  bool
	closeOnce sync.Once
	closed    bool
}

// New returns a planning session for cfg that opens its scans on scanners and
// answers field questions with helper.
func New(cfg *config.Query, scanners stream.ScannerFactory, helper metadata.Helper, optFns ...Option) (*RangeStream, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scanners == nil {
		return nil, errors.New("rangestream: scanner factory is required")
	}
	if helper == nil {
		return nil, errors.New("rangestream: metadata helper is required")
	}

	opts := applyOptions(optFns)
	if opts.logger == nil {
		level, err := cfg.Level()
		if err != nil {
			return nil, err
		}
		opts.logger = NewTextLogger(level)
	}
	n := cfg.Parallelism()

	return &RangeStream{
		cfg:      cfg,
		helper:   helper,
		sessions: newSessions(scanners, opts.metricsCollector),
		opts:     opts,
		logger:   opts.logger.WithQuery(cfg.ID.String()),
		lookups:  pool.NewFixed(n),
		prefetch: pool.New(max(n/2, 1), n, prefetchKeepAlive),
		context:  stream.Initialized,
	}, nil
}

// StreamPlans classifies tree. It validates and flattens the tree, checks its
// depth, pushes index holes down and builds one index stream per node. Scans
// of sibling terms are issued in parallel while the tree is visited.
//
// Fatal problems are returned as *PlanError; recoverable ones only degrade the
// affected subtree.
func (rs *RangeStream) StreamPlans(ctx context.Context, tree *expr.Node) (*RangeStream, error) {
	start := time.Now()
	err := rs.streamPlans(ctx, tree)
	rs.opts.metricsCollector.RecordStreamPlans(time.Since(start), rs.context, err)

	debug := ""
	if rs.root != nil {
		debug = rs.root.ContextDebug()
	}
	rs.logger.LogStreamPlans(ctx, rs.context, debug, err)

	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *RangeStream) streamPlans(ctx context.Context, tree *expr.Node) error {
	if rs.closed {
		return ErrClosed
	}
	if rs.planned {
		return ErrAlreadyPlanned
	}
	rs.planned = true

	if err := expr.Validate(tree); err != nil {
		return planError("validate", nil, err)
	}
	tree = expr.Flatten(tree)

	if depth := expr.Depth(tree, rs.cfg.MaxDepth); depth > rs.cfg.MaxDepth {
		return planError("depth", nil,
			fmt.Errorf("%w: %d > %d", ErrDepthExceeded, depth, rs.cfg.MaxDepth))
	}

	tree, err := pushdown.Rewrite(ctx, tree, rs.cfg, rs.helper, rs.logger.Logger)
	if err != nil {
		var re *pushdown.RegexError
		if errors.As(err, &re) {
			return planError("pushdown", re.Node, err)
		}
		return planError("pushdown", nil, err)
	}
	rs.tree = tree

	v := newVisitor(ctx, rs)
	root, err := v.visit(tree, nil, nil)
	if err != nil {
		if cerr := rs.sessions.closeAll(false); cerr != nil {
			rs.closeFailed(ctx, "scan", cerr)
		}
		return err
	}
	if root == nil {
		root = stream.NotIndexed(tree)
	}
	rs.root = root
	rs.context = root.Context()
	return nil
}

// Context returns the classification of the planned tree. After Plans has
// started it reflects the resolved root, with VARIABLE reported as PRESENT.
func (rs *RangeStream) Context() stream.Context { return rs.context }

// ContextDebug describes the stream tree, one stream per line.
func (rs *RangeStream) ContextDebug() string {
	if rs.root == nil {
		return ""
	}
	return rs.root.ContextDebug()
}

// Tree returns the planned tree after flattening and hole pushdown.
func (rs *RangeStream) Tree() *expr.Node { return rs.tree }

func (rs *RangeStream) closeFailed(ctx context.Context, resource string, err error) {
	rs.opts.metricsCollector.RecordCloseError(err)
	rs.logger.LogCloseFailure(ctx, resource, err)
}
