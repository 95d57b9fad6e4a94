package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.ParseToken != nil
}

func (s Service) Login(ctx context.Context, username, password string) LoginResult {
	return RunLogin(ctx, username, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) Register(ctx context.Context, username, password string) RegisterResult {
	return RunRegister(ctx, username, password, s.deps.Register)
}

func (s Service) ResolveUser(ctx context.Context, tokenStr string) ValidateResult {
	return RunResolveUser(ctx, tokenStr, s.deps.Validate)
}

func (s Service) Health(ctx context.Context) HealthResult {
	return RunHealth(ctx, s.deps.Health)
}
