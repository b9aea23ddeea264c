package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlab/ahlab/internal/cache"
)

func TestFlagOverrides(t *testing.T) {
	require.NoError(t, optimizeCmd.ParseFlags([]string{"--population", "30", "--seed", "5", "--min-roi", "7.5"}))

	o := flagOverrides(optimizeCmd)
	require.NotNil(t, o.PopulationSize)
	assert.Equal(t, 30, *o.PopulationSize)
	require.NotNil(t, o.Seed)
	assert.Equal(t, int64(5), *o.Seed)
	assert.Nil(t, o.MaxGenerations)
	assert.Nil(t, o.CheckpointPath)

	require.NotNil(t, o.Fitness)
	assert.Nil(t, o.Fitness.MinSampleSize)
	assert.InDelta(t, 7.5, *o.Fitness.MinROI, 1e-9)
}

func TestFetchCacheStats(t *testing.T) {
	want := cache.Stats{
		Tables: []cache.TableStats{{Name: cache.TableExpression, Hits: 3, Misses: 1, HitRate: 75, Entries: 1}},
		Hits:   3, Misses: 1, HitRate: 75,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cache", r.URL.Path)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := fetchCacheStats(context.Background(), srv.Client(), http.MethodGet, srv.URL+"/api/cache")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFetchCacheStats_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fetchCacheStats(context.Background(), srv.Client(), http.MethodGet, srv.URL)
	assert.ErrorContains(t, err, "500")
}
