package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetPlatformStatus fetches the platform availability status.
func (c *Client) GetPlatformStatus(ctx context.Context) (*PlatformStatusResponse, error) {
	var resp PlatformStatusResponse
	if err := c.get(ctx, "/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get platform status: %w", err)
	}
	return &resp, nil
}

// GetPools fetches a page of pools.
func (c *Client) GetPools(ctx context.Context, opts GetPoolsOptions) (*PoolsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.AssetClass != "" {
		query.Set("asset_class", opts.AssetClass)
	}

	var resp PoolsResponse
	if err := c.get(ctx, "/pools", query, &resp); err != nil {
		return nil, fmt.Errorf("get pools: %w", err)
	}

	return &resp, nil
}

// GetAllPools fetches all pools by paginating through results.
func (c *Client) GetAllPools(ctx context.Context) ([]APIPool, error) {
	return c.GetAllPoolsWithOptions(ctx, GetPoolsOptions{})
}

// GetAllPoolsWithOptions fetches all pools matching the given options.
func (c *Client) GetAllPoolsWithOptions(ctx context.Context, opts GetPoolsOptions) ([]APIPool, error) {
	var allPools []APIPool
	if opts.Limit == 0 {
		opts.Limit = 500 // Max page size
	}

	for {
		resp, err := c.GetPools(ctx, opts)
		if err != nil {
			return nil, err
		}

		allPools = append(allPools, resp.Pools...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return allPools, nil
}

// GetPool fetches a single pool by address.
func (c *Client) GetPool(ctx context.Context, address string) (*APIPool, error) {
	var resp SinglePoolResponse
	if err := c.get(ctx, "/pools/"+address, nil, &resp); err != nil {
		return nil, fmt.Errorf("get pool %s: %w", address, err)
	}
	return &resp.Pool, nil
}

// GetPoolSnapshot fetches the full current state of a pool.
func (c *Client) GetPoolSnapshot(ctx context.Context, address string) (*PoolSnapshotResponse, error) {
	var resp PoolSnapshotResponse
	if err := c.get(ctx, "/pools/"+address+"/snapshot", nil, &resp); err != nil {
		return nil, fmt.Errorf("get pool snapshot %s: %w", address, err)
	}
	return &resp, nil
}
