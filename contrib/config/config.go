package config

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/omalloc/courier/contrib/log"
	"github.com/omalloc/courier/pkg/mapstruct"
)

// Observer is config observer.
type Observer[T any] func(string, *T)

// Config is a config interface.
type Config[T any] interface {
	Scan(v *T) error
	Watch(key string, o Observer[T]) error
	Close() error
}

type config[T any] struct {
	opts   *options
	stop   chan struct{}
	signal chan os.Signal

	observers map[string][]Observer[T]
	bc        *T
}

func New[T any](opts ...Option) Config[T] {
	o := &options{}

	for _, opt := range opts {
		opt(o)
	}

	c := &config[T]{
		opts:      o,
		stop:      make(chan struct{}, 1),
		signal:    make(chan os.Signal, 1),
		observers: make(map[string][]Observer[T]),
		bc:        nil,
	}

	// wait until the source watches are in place, so a change made right
	// after New returns is not missed
	ready := make(chan struct{})
	go c.tick(ready)
	<-ready

	return c
}

func (c *config[T]) Scan(v *T) error {
	c.bc = v
	for _, source := range c.opts.sources {
		files, err := source.Load()
		if err != nil {
			return err
		}
		for _, file := range files {
			if file.Value == nil {
				continue
			}
			log.Debugf("[config] load file: %s format: %s", file.Key, file.Format)
			tree, err := decodeTree(file)
			if err != nil {
				log.Errorf("[config] decode file: %s error: %s", file.Key, err)
				continue
			}
			if err := mapstruct.Decode(tree, v); err != nil {
				log.Errorf("[config] unmarshal file: %s error: %s", file.Key, err)
			}
		}
	}
	return nil
}

func (c *config[T]) Watch(key string, o Observer[T]) error {
	if c.observers[key] == nil {
		c.observers[key] = make([]Observer[T], 0, 8)
	}
	c.observers[key] = append(c.observers[key], o)
	return nil
}

func (c *config[T]) Close() error {
	c.stop <- struct{}{}
	close(c.stop)
	signal.Stop(c.signal)
	close(c.signal)

	for _, source := range c.opts.sources {
		if w, ok := source.(Watchable); ok {
			w.Stop()
		}
	}
	return nil
}

func (c *config[T]) tick(ready chan<- struct{}) {
	signal.Notify(c.signal, syscall.SIGHUP)

	// merge change notifications from watchable sources with SIGHUP
	changed := make(chan struct{}, 1)
	for _, source := range c.opts.sources {
		if w, ok := source.(Watchable); ok {
			ch, err := w.Watch()
			if err != nil {
				log.Warnf("[config] watch failed: %s", err)
				continue
			}
			go func() {
				for range ch {
					select {
					case changed <- struct{}{}:
					default:
					}
				}
			}()
		}
	}
	close(ready)

	for {
		select {
		case <-c.stop:
			return
		case <-c.signal:
			log.Debug("[config] received SIGHUP")
			c.rescan()
		case <-changed:
			log.Debug("[config] source changed")
			c.rescan()
		}
	}
}

func (c *config[T]) rescan() {
	if c.bc == nil {
		return
	}
	if err := c.Scan(c.bc); err != nil {
		return
	}
	for k, observers := range c.observers {
		log.Debugf("[config] upgrade key: %s", k)
		for _, observer := range observers {
			observer(k, c.bc)
		}
	}
}
