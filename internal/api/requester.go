package api

import "context"

// PathResolver builds full endpoint URLs so resource helpers never touch the
// base URL directly.
type PathResolver interface {
	// apiPath maps "/conversations" to "https://host/api/conversations".
	apiPath(path string) string
}

// HTTPExecutor runs requests with the client's JSON codec, retry, and error
// translation. Splitting it from PathResolver lets tests mock the network
// without faking URL construction.
type HTTPExecutor interface {
	// do sends method+url with body marshaled to JSON when non-nil and
	// decodes the response into result when non-nil.
	do(ctx context.Context, method, url string, body any, result any) error

	// doRaw is do without response decoding, for non-JSON payloads.
	doRaw(ctx context.Context, method, url string, body any) ([]byte, error)
}

// Requester is the full request surface the resource helpers depend on.
type Requester interface {
	PathResolver
	HTTPExecutor
}
