package main

import (
	"strings"
	"sync"

	"captor/internal/config"
	"captor/internal/queue"
	"captor/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the entity store, runs fn, and closes it.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// withQueue opens the queue store, runs fn, and closes it.
func (c *commandContext) withQueue(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	q, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer q.Close()
	return fn(cfg, q)
}

// withStores opens both databases, runs fn, and closes them.
func (c *commandContext) withStores(fn func(*config.Config, *store.Store, *queue.Store) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		q, err := queue.Open(cfg)
		if err != nil {
			return err
		}
		defer q.Close()
		return fn(cfg, st, q)
	})
}
