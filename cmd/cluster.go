package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Re-cluster the faces of a project",
	Long: `Run face clustering for a project directly, without the job queue.
Named clusters keep their identity across runs unless --fresh is given.`,
	RunE: runCluster,
}

var clusterMergesCmd = &cobra.Command{
	Use:   "merges",
	Short: "Show merge suggestions for a project",
	RunE:  runClusterMerges,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterMergesCmd)

	clusterCmd.Flags().String("project", "", "Project to cluster")
	clusterCmd.Flags().Bool("fresh", false, "Rebuild all clusters, discarding names")
	clusterMergesCmd.Flags().String("project", "", "Project to inspect")
}

func runCluster(cmd *cobra.Command, args []string) error {
	project := mustGetString(cmd, "project")
	if project == "" {
		return fmt.Errorf("--project is required")
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.engine.Recluster(context.Background(), project, !mustGetBool(cmd, "fresh"))
	if err != nil {
		return fmt.Errorf("clustering: %w", err)
	}

	fmt.Printf("Clustered %d faces into %d clusters (%d unclustered)\n",
		summary.TotalFaces, summary.NumClusters, summary.Unclustered)
	fmt.Printf("Parameters: eps=%.2f min_samples=%d\n", summary.Params.Eps, summary.Params.MinSamples)
	return nil
}

func runClusterMerges(cmd *cobra.Command, args []string) error {
	project := mustGetString(cmd, "project")
	if project == "" {
		return fmt.Errorf("--project is required")
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	suggestions, err := a.merges.Suggestions(context.Background(), project)
	if err != nil {
		return fmt.Errorf("computing merge suggestions: %w", err)
	}
	if len(suggestions) == 0 {
		fmt.Println("No merge candidates")
		return nil
	}
	for _, s := range suggestions {
		fmt.Printf("cluster %d + cluster %d  (similarity %.3f)\n", s.ClusterID, s.OtherID, s.Similarity)
	}
	return nil
}
