package bsky

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrUnsupportedDID = errors.New("unsupported DID method")
	ErrNoPDS          = errors.New("no PDS endpoint found in DID doc")
)

type didDocument struct {
	ID      string `json:"id"`
	Service []struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		ServiceEndpoint string `json:"serviceEndpoint"`
	} `json:"service"`
}

func (d *didDocument) pdsEndpoint() (string, bool) {
	for _, s := range d.Service {
		if (s.ID == "#atproto_pds" || s.ID == d.ID+"#atproto_pds") && s.ServiceEndpoint != "" {
			return strings.TrimRight(s.ServiceEndpoint, "/"), true
		}
	}
	return "", false
}

// resolveHandle looks up the DID for a handle through the AppView.
func (r *Resolver) resolveHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", errors.New("handle cannot be empty")
	}
	cacheKey := "did:" + handle
	if did, ok := r.cache.Get(ctx, cacheKey); ok {
		return did, nil
	}

	endpoint := r.config.AppViewURL + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(handle)
	var profile struct {
		DID string `json:"did"`
	}
	err := r.getJSON(ctx, endpoint, &profile, func(status int, body []byte) string {
		return fmt.Sprintf("unable to resolve handle (status %d): %s", status, xrpcMessage(body))
	})
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "", err
	} else if err != nil {
		return "", fmt.Errorf("network error while resolving handle: %w", err)
	}
	if profile.DID == "" {
		return "", fmt.Errorf("profile response missing 'did' field for '%s'", handle)
	}
	r.log.Debugw("resolved handle", "handle", handle, "did", profile.DID)
	_ = r.cache.Set(ctx, cacheKey, profile.DID, r.config.CacheTTL)
	return profile.DID, nil
}

// didDocumentURL is where the DID document lives for did:plc and did:web identifiers.
func (r *Resolver) didDocumentURL(did string) (string, error) {
	switch {
	case strings.HasPrefix(did, "did:plc:"):
		return r.config.PLCURL + "/" + did, nil
	case strings.HasPrefix(did, "did:web:"):
		host, err := url.PathUnescape(strings.ReplaceAll(strings.TrimPrefix(did, "did:web:"), ":", "/"))
		if err != nil {
			return "", fmt.Errorf("invalid did:web identifier: %w", err)
		}
		return r.config.DIDWebScheme + "://" + host + "/.well-known/did.json", nil
	default:
		return "", ErrUnsupportedDID
	}
}

// resolvePDS finds the PDS endpoint that hosts the repository of a DID.
func (r *Resolver) resolvePDS(ctx context.Context, did string) (string, error) {
	cacheKey := "pds:" + did
	if pds, ok := r.cache.Get(ctx, cacheKey); ok {
		return pds, nil
	}

	docURL, err := r.didDocumentURL(did)
	if err != nil {
		return "", err
	}
	var doc didDocument
	err = r.getJSON(ctx, docURL, &doc, func(status int, _ []byte) string {
		return fmt.Sprintf("failed to fetch DID doc (status: %d)", status)
	})
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "", err
	} else if err != nil {
		return "", fmt.Errorf("failed to fetch DID doc: %w", err)
	}
	pds, ok := doc.pdsEndpoint()
	if !ok {
		return "", ErrNoPDS
	}
	r.log.Debugw("resolved PDS", "did", did, "pds", pds)
	_ = r.cache.Set(ctx, cacheKey, pds, r.config.CacheTTL)
	return pds, nil
}
