package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fiatsend/internal/httpapi"
)

// Serve exposes the conversion flow over HTTP until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := a.Config.HTTP
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(rt.svc, httpapi.Options{
			CORSOrigins:    cfg.CORSOrigins,
			RequestTimeout: cfg.WriteTimeout,
			History:        rt.history,
		}, a.Logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", cfg.Addr).Str("payer", string(rt.payer)).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	a.Logger.Info().Msg("http server stopped")
	return nil
}
