package auth

// Decision is the outcome of authorizing an inbound signal request. Denials
// are deliberately coarse: a wrong key and an unknown bot both come back as
// InvalidAPIKey, and any non-allow-listed, non-local origin is IPNotAllowed
// regardless of key correctness.
type Decision int

const (
	Allowed Decision = iota
	IPNotAllowed
	InvalidAPIKey
)

// KeyValidator checks a claimed webhook key against a bot's stored key hash.
type KeyValidator interface {
	ValidateWebhookKey(botID, claimedKey string) bool
}

// WebhookAuthenticator authorizes inbound signal requests. Requests from
// allow-listed origin addresses are trusted without a key check; local
// requests fall back to webhook key validation; everything else is denied.
type WebhookAuthenticator struct {
	allowedIPs map[string]struct{}
	keys       KeyValidator
}

func NewWebhookAuthenticator(allowedIPs []string, keys KeyValidator) *WebhookAuthenticator {
	allowed := make(map[string]struct{}, len(allowedIPs))
	for _, ip := range allowedIPs {
		allowed[ip] = struct{}{}
	}
	return &WebhookAuthenticator{
		allowedIPs: allowed,
		keys:       keys,
	}
}

// Authorize decides whether a signal for botID may be processed. The origin
// check runs strictly before any key validation.
func (a *WebhookAuthenticator) Authorize(botID, claimedKey, callerAddress string) Decision {
	if _, ok := a.allowedIPs[callerAddress]; ok {
		return Allowed
	}

	if isLoopback(callerAddress) {
		if a.keys.ValidateWebhookKey(botID, claimedKey) {
			return Allowed
		}
		return InvalidAPIKey
	}

	return IPNotAllowed
}

func isLoopback(addr string) bool {
	return addr == "127.0.0.1" || addr == "::1" || addr == "0:0:0:0:0:0:0:1"
}
