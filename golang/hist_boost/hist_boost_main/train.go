package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tarstars/hist_boosting/golang/hist_boost/dataset"
	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

func train(env commandEnv) error {
	cfg, logger := env.cfg, env.logger
	params, err := cfg.BoosterParams()
	if err != nil {
		return err
	}

	logger.Info("load train", zap.String("uri", cfg.Data.Train))
	trainMatrix, err := dataset.Load(cfg.Data.Train)
	if err != nil {
		return err
	}
	sets := []*hbl.DMatrix{trainMatrix}
	names := []string{"train"}
	for _, eval := range cfg.Evals {
		logger.Info("load eval set", zap.String("name", eval.Name), zap.String("uri", eval.Path))
		m, err := dataset.Load(eval.Path)
		if err != nil {
			return err
		}
		sets = append(sets, m)
		names = append(names, eval.Name)
	}

	opts := []hbl.Option{hbl.WithLogger(logger)}
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, hbl.WithMetrics(hbl.NewMetrics(reg)))
		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}

	booster, err := hbl.NewBooster(trainMatrix, params, opts...)
	if err != nil {
		return err
	}
	out := env.cmd.OutOrStdout()
	for iter := 0; iter < cfg.Rounds; iter++ {
		if err := booster.UpdateOneIteration(iter); err != nil {
			return err
		}
		result, err := booster.EvalOneIteration(iter, sets, names)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%d]\t%s\n", iter, result)
	}
	fmt.Fprintf(out, "NUM_FEATURES = %d\n", booster.NumFeatures())

	if err := booster.Finish(); err != nil {
		return err
	}
	if cfg.Model.Path == "" {
		return nil
	}
	logger.Info("save model", zap.String("path", cfg.Model.Path), zap.Int("trees", booster.NumTrees()))
	return booster.Save(cfg.Model.Path)
}

//serveMetrics exposes the registry over http until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func trainCMD() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train a model",
		Long:  "train a model on data.train, print one eval line per round and save the model",
		RunE: runWith(map[string]string{
			"data":   "data.train",
			"rounds": "rounds",
			"model":  "model.path",
		}, train),
	}
	trainCmd.Flags().String("data", "", "training data uri, e.g. iris.csv?format=csv&label_column=4")
	trainCmd.Flags().Int("rounds", 10, "number of boosting rounds")
	trainCmd.Flags().String("model", "hist_boost_model.json", "where to save the model; .zst compresses it")
	return trainCmd
}
