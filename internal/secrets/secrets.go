// Package secrets resolves credential references held in configuration.
//
// A value of the form gcpsm://projects/<project>/secrets/<secret>[/versions/<version>]
// is replaced by the payload of that Secret Manager secret version. The
// version defaults to "latest". Pointing the resolver at an emulator
// endpoint connects without TLS or credentials.
package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blackwell-systems/catalog-sync/internal/config"
)

// Scheme prefixes a Secret Manager reference
const Scheme = "gcpsm://"

// Resolver turns a reference into its secret value
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPResolver reads references from Secret Manager
type GCPResolver struct {
	client accessor
	closer func() error
}

// IsReference reports whether s is a secret reference
func IsReference(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// NewGCPResolver connects to Secret Manager, or to the emulator at
// endpoint when it is set
func NewGCPResolver(ctx context.Context, endpoint string) (*GCPResolver, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts,
			option.WithEndpoint(endpoint),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &GCPResolver{client: client, closer: client.Close}, nil
}

// Close releases the underlying connection
func (r *GCPResolver) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Resolve returns the payload of the referenced secret version
func (r *GCPResolver) Resolve(ctx context.Context, ref string) (string, error) {
	name, err := VersionName(ref)
	if err != nil {
		return "", err
	}

	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}

	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

// VersionName converts a reference to a secret version resource name
func VersionName(ref string) (string, error) {
	if !IsReference(ref) {
		return "", fmt.Errorf("not a secret reference: %q", ref)
	}

	parts := strings.Split(strings.TrimPrefix(ref, Scheme), "/")
	switch {
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "secrets" && parts[1] != "" && parts[3] != "":
		return strings.Join(append(parts, "versions", "latest"), "/"), nil
	case len(parts) == 6 && parts[0] == "projects" && parts[2] == "secrets" && parts[4] == "versions" &&
		parts[1] != "" && parts[3] != "" && parts[5] != "":
		return strings.Join(parts, "/"), nil
	default:
		return "", fmt.Errorf("invalid secret reference %q (want %sprojects/<project>/secrets/<secret>[/versions/<version>])", ref, Scheme)
	}
}

// HasReferences reports whether any credential in cfg is a reference
func HasReferences(cfg *config.Config) bool {
	for _, v := range credentials(cfg) {
		if IsReference(*v) {
			return true
		}
	}
	return false
}

// ResolveConfig replaces every credential reference in cfg with its value
// and validates the result, so a secret that resolves to blank is rejected
// before any request is made.
func ResolveConfig(ctx context.Context, r Resolver, cfg *config.Config) error {
	for _, v := range credentials(cfg) {
		if !IsReference(*v) {
			continue
		}
		ref := *v
		resolved, err := r.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		if strings.TrimSpace(resolved) == "" {
			return fmt.Errorf("secret %s resolved to an empty value", ref)
		}
		*v = resolved
	}
	return cfg.Validate()
}

func credentials(cfg *config.Config) []*string {
	return []*string{&cfg.Source.Token, &cfg.Target.ClientID, &cfg.Target.ClientSecret}
}
