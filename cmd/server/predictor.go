package main

import (
	"fmt"
	"log/slog"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/config"
	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/predictor"
)

// loadPredictor picks the remote scorer when PREDICTOR_URL is set and the
// local artifact otherwise. The returned func releases its resources.
func loadPredictor(cfg *config.Config) (predictor.Predictor, func(), error) {
	if cfg.PredictorURL != "" {
		remote := predictor.NewRemote(predictor.RemoteConfig{
			URL:     cfg.PredictorURL,
			Timeout: cfg.PredictorTimeout,
		})
		slog.Info("Using remote predictor", "url", cfg.PredictorURL, "timeout", cfg.PredictorTimeout)
		return remote, func() { apperrors.SafeClose(remote, "remote predictor") }, nil
	}

	model, err := predictor.Load(cfg.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Model artifact loaded", "path", cfg.ModelPath, "model", describe(model))
	return model, func() {}, nil
}

func describe(p predictor.Predictor) string {
	d, ok := p.(predictor.Describer)
	if !ok {
		return fmt.Sprintf("%T", p)
	}
	info := d.Info()
	if info.Version == "" {
		return info.Format
	}
	return info.Format + "@" + info.Version
}
