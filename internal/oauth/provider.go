// oauth обменивает authorization code внешнего провайдера на проверенный профиль.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pribylovaa/club-auth/internal/config"
	"github.com/pribylovaa/club-auth/internal/models"
	"golang.org/x/oauth2"
)

var (
	// ErrRejected — провайдер отклонил код или вернул непригодный профиль.
	ErrRejected = errors.New("identity rejected")
	// ErrNotConfigured — OAuth-клиент не сконфигурирован.
	ErrNotConfigured = errors.New("oauth provider is not configured")
)

// IdentityProvider — внешний провайдер идентичности.
//
//go:generate mockgen -destination=../../mocks/mock_identity_provider.go -package=mocks github.com/pribylovaa/club-auth/internal/oauth IdentityProvider
type IdentityProvider interface {
	// Exchange обменивает код на профиль пользователя.
	Exchange(ctx context.Context, code string) (*models.ExternalProfile, error)
}

// Client — IdentityProvider поверх golang.org/x/oauth2 и userinfo-эндпоинта.
type Client struct {
	oauth         *oauth2.Config
	userInfoURL   string
	subjectPrefix string
	httpClient    *http.Client
}

// NewClient создаёт клиента. Без client_id, token_url или userinfo_url возвращает ErrNotConfigured.
func NewClient(cfg config.OAuthConfig, httpClient *http.Client) (*Client, error) {
	const op = "oauth.provider.NewClient"

	if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL:   cfg.UserInfoURL,
		subjectPrefix: cfg.SubjectPrefix,
		httpClient:    httpClient,
	}, nil
}

// userInfo покрывает OIDC-поля и плоский формат с числовым id.
type userInfo struct {
	Sub      string      `json:"sub"`
	ID       json.Number `json:"id"`
	Email    string      `json:"email"`
	Nickname string      `json:"nickname"`
	Name     string      `json:"name"`
	Picture  string      `json:"picture"`
}

// Exchange обменивает код на токен провайдера и читает профиль.
func (c *Client) Exchange(ctx context.Context, code string) (*models.ExternalProfile, error) {
	const op = "oauth.provider.Exchange"

	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%s: empty code: %w", op, ErrRejected)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrRejected, err)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: userinfo status %d: %w", op, resp.StatusCode, ErrRejected)
	}

	var info userInfo
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&info); err != nil {
		return nil, fmt.Errorf("%s: decode userinfo: %w", op, ErrRejected)
	}

	id := info.Sub
	if id == "" {
		id = info.ID.String()
	}
	if id == "" {
		return nil, fmt.Errorf("%s: userinfo without subject: %w", op, ErrRejected)
	}

	nickname := info.Nickname
	if nickname == "" {
		nickname = info.Name
	}

	return &models.ExternalProfile{
		Subject:         c.subjectPrefix + id,
		Email:           info.Email,
		Nickname:        nickname,
		ProfileImageURL: info.Picture,
	}, nil
}

var _ IdentityProvider = (*Client)(nil)
