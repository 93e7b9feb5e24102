package simulator

// Script-visible keys of the shared simulation context. Customization
// scripts address the typed fields through these names; any other key a
// script writes lands in the open extension map.
const (
	KeyRootPath         = "rootPath"
	KeyRootRelativePath = "rootRelativePath"
	KeyRequest          = "request"
	KeyContentType      = "contentType"
	KeyResponse         = "simulatorResponse"
)

// SimulatorResponse is the outcome of resolving a request: the response
// payload to return and, when a stored fixture produced it, the path of
// the fixture request file that matched. MatchingRequest is empty for
// responses fabricated by a pre-hook or produced by forwarding. A zero
// Status means 200.
type SimulatorResponse struct {
	Payload         string
	ContentType     string
	MatchingRequest string
	Status          int
}

// HookFailure is the structured record of a customization script that
// failed. Failures are contained at the runner boundary; this record is
// how they stay observable.
type HookFailure struct {
	Role   string
	Script string
	Err    string
}

// Context is the shared state of one request cycle. Every pipeline stage
// and customization script operates on the same instance by reference, so
// a write made by one hook is visible to every later step of the cycle.
// A Context is created fresh per request and discarded when the cycle
// ends; it is confined to the goroutine handling that request and needs
// no locking.
type Context struct {
	RootPath         string
	RootRelativePath string
	Request          string
	ContentType      string

	// Response is nil until resolution runs or a pre-hook fabricates one.
	Response *SimulatorResponse

	// Extra holds script-defined keys. They persist for the remainder of
	// the cycle and are visible to all later hooks.
	Extra map[string]any

	// Failures accumulates contained hook errors for diagnostics.
	Failures []HookFailure
}

// NewContext populates a fresh per-cycle context with the four known
// input keys.
func NewContext(rootPath, rootRelativePath, request, contentType string) *Context {
	return &Context{
		RootPath:         rootPath,
		RootRelativePath: rootRelativePath,
		Request:          request,
		ContentType:      contentType,
		Extra:            make(map[string]any),
	}
}

// Vars renders the script-visible view of the context as a plain map.
// The response is exposed as a nested map so scripts are not coupled to
// the Go struct shape.
func (c *Context) Vars() map[string]any {
	m := make(map[string]any, len(c.Extra)+5)
	for k, v := range c.Extra {
		m[k] = v
	}
	m[KeyRootPath] = c.RootPath
	m[KeyRootRelativePath] = c.RootRelativePath
	m[KeyRequest] = c.Request
	m[KeyContentType] = c.ContentType
	if c.Response != nil {
		m[KeyResponse] = map[string]any{
			"payload":         c.Response.Payload,
			"contentType":     c.Response.ContentType,
			"matchingRequest": c.Response.MatchingRequest,
			"status":          int64(c.Response.Status),
		}
	}
	return m
}

// AbsorbVars copies script mutations back into the context. Known keys
// update the typed fields; everything else is kept in Extra. Keys are
// never removed: a key absent from m (scripts cannot delete through the
// engines we ship) leaves the field untouched.
func (c *Context) AbsorbVars(m map[string]any) {
	for k, v := range m {
		switch k {
		case KeyRootPath:
			c.RootPath = asString(v, c.RootPath)
		case KeyRootRelativePath:
			c.RootRelativePath = asString(v, c.RootRelativePath)
		case KeyRequest:
			c.Request = asString(v, c.Request)
		case KeyContentType:
			c.ContentType = asString(v, c.ContentType)
		case KeyResponse:
			c.Response = coerceResponse(v)
		default:
			c.Extra[k] = v
		}
	}
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// asInt accepts the numeric types script engines export.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// coerceResponse interprets a script-written response value. Scripts set
// either a map with payload/contentType keys or whatever response object
// they previously read back out of vars.
func coerceResponse(v any) *SimulatorResponse {
	switch r := v.(type) {
	case nil:
		return nil
	case *SimulatorResponse:
		return r
	case SimulatorResponse:
		return &r
	case map[string]any:
		resp := &SimulatorResponse{}
		resp.Payload = asString(r["payload"], "")
		resp.ContentType = asString(r["contentType"], "")
		resp.MatchingRequest = asString(r["matchingRequest"], "")
		resp.Status = asInt(r["status"])
		return resp
	default:
		return nil
	}
}
