//go:generate mockgen -destination=mocks/fetcher.go -package=mocks . Fetcher
package download

import "context"

// Fetcher retrieves the raw bytes behind a URL. Implementations decide which
// schemes they support; the repository engine only consumes this contract.
type Fetcher interface {
	// FetchBytes downloads the resource at url and returns its content.
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}
