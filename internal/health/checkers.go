package health

import (
	"context"
	"fmt"
	"net/http"

	"github.com/murmur-app/murmur/internal/store"
)

// StoreChecker verifies the safe-word store is reachable.
func StoreChecker(st *store.Store) Checker {
	return Checker{
		Name:  "store",
		Check: st.Ping,
	}
}

// ServiceChecker probes an external speech service for reachability. Any
// HTTP response counts as reachable; only transport failures fail the check.
func ServiceChecker(name, url string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("build probe request: %w", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("%s unreachable: %w", name, err)
			}
			resp.Body.Close()
			return nil
		},
	}
}
