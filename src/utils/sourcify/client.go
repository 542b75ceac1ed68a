package sourcify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/eth"
	"github.com/evmarchive/archiver/src/utils/logger"
	"github.com/evmarchive/archiver/src/utils/transport"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
)

// Raised when every (match quality, mirror) candidate failed
var ErrExhaustedSources = errors.New("exhausted all primary sources")

// Talks to verified-source repositories (Sourcify and compatible mirrors)
type Client struct {
	client *transport.Client
	config *config.Config
	log    *logrus.Entry
}

func NewClient(config *config.Config) (self *Client) {
	self = new(Client)
	self.config = config
	self.log = logger.NewSublogger("sourcify")
	return
}

func (self *Client) WithClient(client *transport.Client) *Client {
	self.client = client
	return self
}

type candidate struct {
	quality MatchQuality
	mirror  string
}

// Exact matches win over approximate ones by construction of this order
func (self *Client) candidates() (out []candidate) {
	out = make([]candidate, 0, 2*len(self.config.Sourcify.Mirrors))
	for _, quality := range []MatchQuality{MatchExact, MatchApproximate} {
		for _, mirror := range self.config.Sourcify.Mirrors {
			out = append(out, candidate{quality: quality, mirror: strings.TrimSuffix(mirror, "/")})
		}
	}
	return
}

func (self *Client) contractBase(mirror string, quality MatchQuality, chainId int64, address string) string {
	return fmt.Sprintf("%s/contracts/%s_match/%d/%s", mirror, quality, chainId, address)
}

// Looks the contract up in every candidate location, first hit wins.
// 404 means "not present here" and moves on, other errors are remembered
// and reported if the whole list gets exhausted.
func (self *Client) FetchMetadata(ctx context.Context, chainId int64, address string) (out *Lookup, err error) {
	checksummed, err := eth.ChecksumAddress(address)
	if err != nil {
		return
	}

	var lastErr error
	for _, c := range self.candidates() {
		base := self.contractBase(c.mirror, c.quality, chainId, checksummed)
		metadataUrl := base + "/metadata.json"

		payload, err := self.client.Get(ctx, metadataUrl)
		if err != nil {
			if errors.Is(err, transport.ErrNotFound) {
				// Not present at this candidate
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			self.log.WithError(err).WithField("url", metadataUrl).Warn("Metadata lookup failed, trying next candidate")
			lastErr = err
			continue
		}

		metadata := new(Metadata)
		err = json.Unmarshal(payload.Data, metadata)
		if err != nil {
			return nil, &transport.SchemaValidationError{What: "contract metadata", Err: err}
		}

		return &Lookup{
			Metadata:     metadata,
			Raw:          payload.Data,
			MatchQuality: c.quality,
			OriginURL:    metadataUrl,
			BaseURL:      base,
			FetchedAt:    time.Now(),
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %w", ErrExhaustedSources, lastErr)
	}
	return nil, ErrExhaustedSources
}

// Downloads every source file listed in the metadata, bounded fan-out.
// Files with embedded content are taken as is without touching the network.
// A failed file is logged and omitted, it never fails the whole contract.
func (self *Client) FetchAllSources(ctx context.Context, lookup *Lookup) (files map[string][]byte) {
	sources := lookup.Metadata.Sources
	files = make(map[string][]byte, len(sources))

	var (
		mtx sync.Mutex
		wg  sync.WaitGroup
	)

	pool := workerpool.New(self.config.Sourcify.SourceWorkers)
	defer pool.StopWait()

	for path, entry := range sources {
		if entry.Content != "" {
			files[path] = []byte(entry.Content)
			continue
		}

		path, entry := path, entry
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()

			data, err := self.fetchSource(ctx, lookup, path, entry)
			if err != nil {
				self.log.WithError(err).WithField("path", path).Warn("Failed to fetch source file, omitting")
				return
			}

			mtx.Lock()
			files[path] = data
			mtx.Unlock()
		})
	}

	wg.Wait()
	return
}

func (self *Client) fetchSource(ctx context.Context, lookup *Lookup, path string, entry SourceEntry) (data []byte, err error) {
	sourceUrl := lookup.BaseURL + "/sources/" + escapePath(path)

	payload, err := self.client.Get(ctx, sourceUrl)
	if err == nil {
		return self.checkSourceHash(path, entry, payload.Data)
	}

	// The repository doesn't have it, the metadata may still point at IPFS
	cid := entry.IpfsCid()
	if cid == "" {
		return nil, err
	}

	data, ipfsErr := self.FetchIPFS(ctx, cid)
	if ipfsErr != nil {
		return nil, errors.Join(err, ipfsErr)
	}
	return self.checkSourceHash(path, entry, data)
}

// Metadata pins each source by keccak hash, drop files that don't match
func (self *Client) checkSourceHash(path string, entry SourceEntry, data []byte) ([]byte, error) {
	if entry.Keccak256 == "" {
		return data, nil
	}
	expected := strings.TrimPrefix(strings.ToLower(entry.Keccak256), "0x")
	actual := eth.Keccak256Hex(data)
	if expected != actual {
		return nil, fmt.Errorf("source content hash mismatch for %s: expected %s got %s", path, expected, actual)
	}
	return data, nil
}

// Tries the configured gateways in order, first success wins
func (self *Client) FetchIPFS(ctx context.Context, cid string) (data []byte, err error) {
	var errs []error
	for _, gateway := range self.config.Sourcify.IPFSGateways {
		payload, gwErr := self.client.Get(ctx, strings.TrimSuffix(gateway, "/")+"/"+cid)
		if gwErr == nil {
			return payload.Data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", gateway, gwErr))
	}
	return nil, errors.Join(errs...)
}

// Escapes each path segment, keeps the separators
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
