package cache

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/model"
)

// ErrClosed is returned by Owner operations after Close.
var ErrClosed = eris.New("cache: owner closed")

type opKind int

const (
	opGet opKind = iota
	opPut
	opPutIfAbsent
	opDelete
	opAll
)

type request struct {
	ctx   context.Context
	op    opKind
	key   string
	rec   model.CompanyRecord
	reply chan response
}

type response struct {
	rec *model.CompanyRecord
	all map[string]model.CompanyRecord
	err error
}

// Owner is the single writer for a Store. Every operation is a message to
// one goroutine that owns the Store, so concurrent pipelines never touch it
// directly.
type Owner struct {
	store Store
	reqs  chan request
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewOwner starts the owner goroutine for s.
func NewOwner(s Store) *Owner {
	o := &Owner{
		store: s,
		reqs:  make(chan request),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *Owner) loop() {
	defer close(o.done)
	for {
		select {
		case r := <-o.reqs:
			r.reply <- o.handle(r)
		case <-o.quit:
			return
		}
	}
}

func (o *Owner) handle(r request) response {
	switch r.op {
	case opGet:
		rec, err := o.store.Get(r.ctx, r.key)
		return response{rec: rec, err: err}
	case opPut:
		return response{err: o.store.Put(r.ctx, r.key, r.rec)}
	case opPutIfAbsent:
		existing, err := o.store.Get(r.ctx, r.key)
		if err != nil || existing != nil {
			return response{rec: existing, err: err}
		}
		return response{err: o.store.Put(r.ctx, r.key, r.rec)}
	case opDelete:
		return response{err: o.store.Delete(r.ctx, r.key)}
	case opAll:
		all, err := o.store.All(r.ctx)
		return response{all: all, err: err}
	}
	return response{err: eris.Errorf("cache: unknown op %d", r.op)}
}

func (o *Owner) send(ctx context.Context, r request) response {
	r.ctx = ctx
	r.reply = make(chan response, 1)
	select {
	case o.reqs <- r:
	case <-o.quit:
		return response{err: ErrClosed}
	case <-ctx.Done():
		return response{err: eris.Wrap(ctx.Err(), "cache: request")}
	}
	select {
	case resp := <-r.reply:
		return resp
	case <-ctx.Done():
		return response{err: eris.Wrap(ctx.Err(), "cache: await reply")}
	}
}

// Get returns the record for key, or nil when absent.
func (o *Owner) Get(ctx context.Context, key string) (*model.CompanyRecord, error) {
	resp := o.send(ctx, request{op: opGet, key: key})
	return resp.rec, resp.err
}

// Put stores rec under key.
func (o *Owner) Put(ctx context.Context, key string, rec model.CompanyRecord) error {
	return o.send(ctx, request{op: opPut, key: key, rec: rec}).err
}

// PutIfAbsent stores rec under key unless a record is already there. It
// returns the existing record, or nil when rec was stored. The check and
// the write happen in one owner step, so a late writer cannot replace a
// record another caller persisted.
func (o *Owner) PutIfAbsent(ctx context.Context, key string, rec model.CompanyRecord) (*model.CompanyRecord, error) {
	resp := o.send(ctx, request{op: opPutIfAbsent, key: key, rec: rec})
	return resp.rec, resp.err
}

// Delete removes key.
func (o *Owner) Delete(ctx context.Context, key string) error {
	return o.send(ctx, request{op: opDelete, key: key}).err
}

// All returns every stored record.
func (o *Owner) All(ctx context.Context) (map[string]model.CompanyRecord, error) {
	resp := o.send(ctx, request{op: opAll})
	return resp.all, resp.err
}

// Close stops the owner goroutine and closes the Store. It is safe to call
// more than once.
func (o *Owner) Close() error {
	var err error
	o.once.Do(func() {
		close(o.quit)
		<-o.done
		err = o.store.Close()
	})
	return err
}
