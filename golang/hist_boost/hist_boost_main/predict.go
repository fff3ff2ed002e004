package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tarstars/hist_boosting/golang/hist_boost/dataset"
	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

func predict(env commandEnv) error {
	cfg := env.cfg
	booster, err := hbl.LoadModel(cfg.Model.Path, hbl.WithLogger(env.logger))
	if err != nil {
		return err
	}
	m, err := dataset.Load(cfg.Predict.Input)
	if err != nil {
		return err
	}
	prediction, err := booster.PredictMatrix(m, hbl.PredictOptions{
		OutputMargin: cfg.Predict.OutputMargin,
		TreeLimit:    cfg.Predict.TreeLimit,
	})
	if err != nil {
		return err
	}
	rows, cols := prediction.Dims()
	env.logger.Info("write prediction", zap.String("path", cfg.Predict.Output), zap.Int("rows", rows), zap.Int("cols", cols))
	return dataset.WriteNpy(cfg.Predict.Output, prediction)
}

func predictCMD() *cobra.Command {
	predictCmd := &cobra.Command{
		Use:   "predict",
		Short: "predict with a saved model",
		RunE: runWith(map[string]string{
			"model":      "model.path",
			"data":       "predict.input",
			"output":     "predict.output",
			"margin":     "predict.output_margin",
			"tree-limit": "predict.tree_limit",
		}, predict),
	}
	predictCmd.Flags().String("model", "hist_boost_model.json", "saved model")
	predictCmd.Flags().String("data", "", "data uri")
	predictCmd.Flags().String("output", "prediction.npy", "npy file for the predictions")
	predictCmd.Flags().Bool("margin", false, "write raw scores instead of final predictions")
	predictCmd.Flags().Int("tree-limit", 0, "use only the first rounds, 0 for all")
	return predictCmd
}
