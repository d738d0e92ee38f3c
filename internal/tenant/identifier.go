package tenant

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Kind tags how an Identifier addresses a tenant.
type Kind int

const (
	KindNone Kind = iota
	KindCanonicalID
	KindSubdomain
	KindSlug
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindCanonicalID:
		return "id"
	case KindSubdomain:
		return "subdomain"
	case KindSlug:
		return "slug"
	case KindDomain:
		return "domain"
	}
	return "none"
}

// HeaderTenantID is the request header carrying an explicit tenant token.
const HeaderTenantID = "X-Tenant-ID"

// Identifier is a tenant reference classified once at the edge. Nothing below
// the edge inspects the shape of Value again.
type Identifier struct {
	Kind  Kind
	Value string

	// SlugFallback is set on subdomain identifiers parsed from a bare token,
	// which may equally be a share slug.
	SlugFallback bool
}

// None is the absent identifier.
var None = Identifier{}

// ID returns a canonical id identifier.
func ID(id uuid.UUID) Identifier {
	return Identifier{Kind: KindCanonicalID, Value: id.String()}
}

// Subdomain returns an identifier looked up by subdomain only.
func Subdomain(name string) Identifier {
	return Identifier{Kind: KindSubdomain, Value: strings.ToLower(name)}
}

// Slug returns an identifier looked up by share slug only.
func Slug(slug string) Identifier {
	return Identifier{Kind: KindSlug, Value: slug}
}

// Domain returns an identifier looked up by custom domain only.
func Domain(host string) Identifier {
	return Identifier{Kind: KindDomain, Value: strings.ToLower(host)}
}

// IsNone reports whether no tenant was supplied.
func (i Identifier) IsNone() bool {
	return i.Kind == KindNone
}

func (i Identifier) String() string {
	if i.IsNone() {
		return "none"
	}
	return i.Kind.String() + ":" + i.Value
}

// ParseToken classifies a caller supplied token. A canonical 8-4-4-4-12 uuid
// is an id; anything else is a name tried as a subdomain and then as a share
// slug.
func ParseToken(s string) Identifier {
	s = strings.TrimSpace(s)
	if s == "" {
		return None
	}

	if len(s) == 36 {
		if id, err := uuid.Parse(s); err == nil {
			return ID(id)
		}
	}

	// share slugs are case sensitive, so keep the raw value
	return Identifier{Kind: KindSubdomain, Value: s, SlugFallback: true}
}

// FromHost derives an identifier from a request host. A single label under
// baseDomain is a subdomain; any other public host is a custom domain.
func FromHost(host, baseDomain string) Identifier {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	baseDomain = strings.TrimSuffix(strings.ToLower(baseDomain), ".")

	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return None
	}

	if baseDomain != "" {
		if host == baseDomain || host == "www."+baseDomain {
			return None
		}
		if label, ok := strings.CutSuffix(host, "."+baseDomain); ok {
			if strings.Contains(label, ".") {
				return None
			}
			return Subdomain(label)
		}
	}

	return Domain(host)
}

// FromRequest extracts the tenant identifier from r. Precedence is the
// X-Tenant-ID header, the tenant query parameter, the {tenant} path value and
// finally the Host.
func FromRequest(r *http.Request, baseDomain string) Identifier {
	if v := r.Header.Get(HeaderTenantID); v != "" {
		return ParseToken(v)
	}
	if v := r.URL.Query().Get("tenant"); v != "" {
		return ParseToken(v)
	}
	if v := r.PathValue("tenant"); v != "" {
		return ParseToken(v)
	}
	return FromHost(r.Host, baseDomain)
}
