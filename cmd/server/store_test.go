package main

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/shopfloor/internal/config"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/repository"
	"github.com/and161185/shopfloor/internal/repository/memory"
)

func TestOpenStore_DefaultsToMemory(t *testing.T) {
	st := openStore[model.Order](backend{}, repository.KindOrders)
	_, ok := st.(*memory.Store[model.Order])
	require.True(t, ok)
}

func TestNewRepo(t *testing.T) {
	cfg := config.Default()
	cfg.CacheEngine = "lfu"
	cfg.RefreshInterval = time.Hour

	r, err := newRepo[model.Shift](backend{}, repository.KindShifts, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(r.Close)
	require.Equal(t, repository.KindShifts, r.Kind())
	require.True(t, r.Running())

	worker := uuid.Must(uuid.NewV4())
	s, err := r.Save(context.Background(), model.Shift{ID: uuid.Must(uuid.NewV4()), WorkerID: worker})
	require.NoError(t, err)
	got, err := r.FindByKey(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, worker, got.WorkerID)

	cfg.CacheEngine = "arc"
	_, err = newRepo[model.Shift](backend{}, repository.KindShifts, cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}
