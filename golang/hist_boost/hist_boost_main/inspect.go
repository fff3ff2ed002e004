package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

func graph(env commandEnv) error {
	booster, err := hbl.LoadModel(env.cfg.Model.Path)
	if err != nil {
		return err
	}
	graphCfg := env.cfg.Graph
	return booster.RenderTrees(graphCfg.Prefix, graphCfg.Format, graphCfg.Directory)
}

//withOutput runs write against the file named by the output flag, or stdout when it is empty.
func withOutput(cmd *cobra.Command, write func(w io.Writer) error) (err error) {
	fileName, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if fileName == "" {
		return write(cmd.OutOrStdout())
	}
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
	}()
	return write(dst)
}

func lcurve(env commandEnv) error {
	booster, err := hbl.LoadModel(env.cfg.Model.Path)
	if err != nil {
		return err
	}
	return withOutput(env.cmd, booster.DumpLearningCurves)
}

func dump(env commandEnv) error {
	booster, err := hbl.LoadModel(env.cfg.Model.Path)
	if err != nil {
		return err
	}
	withStats, err := env.cmd.Flags().GetBool("with-stats")
	if err != nil {
		return err
	}
	return withOutput(env.cmd, func(w io.Writer) error {
		return booster.DumpModel(w, withStats)
	})
}

func graphCMD() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "render every tree of a model with graphviz",
		RunE: runWith(map[string]string{
			"model":  "model.path",
			"format": "graph.format",
			"dir":    "graph.directory",
			"prefix": "graph.prefix",
		}, graph),
	}
	graphCmd.Flags().String("model", "hist_boost_model.json", "saved model")
	graphCmd.Flags().String("format", "svg", "png, svg or jpg")
	graphCmd.Flags().String("dir", ".", "output directory")
	graphCmd.Flags().String("prefix", "tree", "file name prefix")
	return graphCmd
}

func lcurveCMD() *cobra.Command {
	lcurveCmd := &cobra.Command{
		Use:   "lcurve",
		Short: "dump the learning curves stored in a model",
		RunE:  runWith(map[string]string{"model": "model.path"}, lcurve),
	}
	lcurveCmd.Flags().String("model", "hist_boost_model.json", "saved model")
	lcurveCmd.Flags().String("output", "", "json file, stdout when empty")
	return lcurveCmd
}

func dumpCMD() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "dump the trees of a model as json",
		RunE:  runWith(map[string]string{"model": "model.path"}, dump),
	}
	dumpCmd.Flags().String("model", "hist_boost_model.json", "saved model")
	dumpCmd.Flags().String("output", "", "json file, stdout when empty")
	dumpCmd.Flags().Bool("with-stats", false, "include gain and cover")
	return dumpCmd
}
