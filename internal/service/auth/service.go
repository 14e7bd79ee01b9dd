package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/procura/service/auth")
	validate      = validator.New(validator.WithRequiredStructEnabled())
)

// ErrInvalidToken is returned for malformed, forged or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Module provides the auth service to Fx.
var Module = fx.Provide(NewService)

// UserStore is the persistence surface the service depends on.
type UserStore interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

// Claims is the JWT payload issued on login.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	Site  string   `json:"site,omitempty"`
	jwt.RegisteredClaims
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *entity.User
}

// NewUserInput carries the fields of a new account.
type NewUserInput struct {
	Email    string   `validate:"required,email"`
	Password string   `validate:"required,min=8"`
	Name     string   `validate:"max=255"`
	Roles    []string `validate:"dive,required"`
	Site     string
}

// Service authenticates users and issues tokens.
type Service struct {
	users  UserStore
	secret []byte
	issuer string
	ttl    time.Duration
	cost   int
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Users  *userrepo.Repository
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Users, p.Config.Auth, p.Logger)
}

// New builds a Service from explicit collaborators.
func New(users UserStore, cfg config.Auth, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:  users,
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		cost:   bcrypt.DefaultCost,
		logger: logger,
		now:    time.Now,
	}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login verifies credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errorbank.BadRequest("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, userrepo.ErrNotFound) {
		return nil, errorbank.Unauthorized("invalid email or password")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		s.logger.Error("load user for login", zap.Error(err))
		return nil, errorbank.Internal("failed to sign in", errorbank.WithCause(err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errorbank.Unauthorized("invalid email or password")
	}

	expires := s.now().Add(s.ttl)
	signed, err := s.sign(user, expires)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("sign token", zap.Error(err))
		return nil, errorbank.Internal("failed to sign in", errorbank.WithCause(err))
	}
	return &Token{AccessToken: signed, ExpiresAt: expires, User: user}, nil
}

func (s *Service) sign(user *entity.User, expires time.Time) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		Roles: user.Roles,
		Site:  user.AssignedSite,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a bearer token into the caller it identifies.
func (s *Service) Verify(raw string) (*authz.Principal, error) {
	claims := new(Claims)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &authz.Principal{UserID: id, Email: claims.Email, Roles: claims.Roles, Site: claims.Site}, nil
}

// CreateUser registers an account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, in NewUserInput) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.CreateUser")
	defer span.End()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Site = strings.TrimSpace(in.Site)
	if err := validate.Struct(in); err != nil {
		return nil, errorbank.BadRequest("a valid email and a password of at least 8 characters are required")
	}
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{entity.RoleUser}
	}
	isAdmin := false
	for _, r := range roles {
		if r == entity.RoleAdmin {
			isAdmin = true
		}
	}
	if !isAdmin && in.Site == "" {
		return nil, errorbank.BadRequest("site is required for non-admin users")
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, errorbank.Internal("failed to create user", errorbank.WithCause(err))
	}
	now := s.now().UTC()
	user := &entity.User{
		ID:           uuid.New(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Roles:        roles,
		AssignedSite: in.Site,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, errorbank.Conflict("email already registered", errorbank.WithCause(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.logger.Error("create user", zap.Error(err))
		return nil, errorbank.Internal("failed to create user", errorbank.WithCause(err))
	}
	return user, nil
}

// Me loads the account behind a principal.
func (s *Service) Me(ctx context.Context, p *authz.Principal) (*entity.User, error) {
	if p == nil {
		return nil, errorbank.Unauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, p.UserID)
	if errors.Is(err, userrepo.ErrNotFound) {
		return nil, errorbank.Unauthorized("account no longer exists")
	}
	if err != nil {
		s.logger.Error("load current user", zap.Error(err))
		return nil, errorbank.Internal("failed to load account", errorbank.WithCause(err))
	}
	return user, nil
}
