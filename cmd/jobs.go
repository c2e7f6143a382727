package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/jobs"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage the job queue",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	RunE:  runJobsList,
}

var jobsEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a job",
	RunE:  runJobsEnqueue,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cooperative cancellation of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Mark running jobs with expired leases as failed",
	RunE:  runJobsRecover,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsEnqueueCmd, jobsCancelCmd, jobsRecoverCmd)

	jobsListCmd.Flags().String("project", "", "Only show jobs of this project")
	jobsListCmd.Flags().Int("limit", 20, "Maximum number of jobs to show")

	jobsEnqueueCmd.Flags().String("kind", "", "Job kind: detect_faces, embed, cluster or caption")
	jobsEnqueueCmd.Flags().String("project", "", "Project the job belongs to")
	jobsEnqueueCmd.Flags().String("photos", "", "Comma-separated photo uids (detect_faces, embed, caption)")
	jobsEnqueueCmd.Flags().Bool("force", false, "Recompute embeddings that already exist (embed only)")
	jobsEnqueueCmd.Flags().Bool("fresh", false, "Rebuild all clusters, discarding names (cluster only)")
}

func runJobsList(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	list, err := a.jobs.List(context.Background(), mustGetString(cmd, "project"), mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No jobs found")
		return nil
	}
	for _, j := range list {
		line := fmt.Sprintf("%s  %-12s %-9s %-10s %3.0f%%", j.ID, j.Kind, j.Status, j.Project, j.Progress*100)
		if j.Error != "" {
			line += "  " + j.Error
		}
		fmt.Println(line)
	}
	return nil
}

// buildEnqueuePayload assembles the handler payload for a job kind from
// the enqueue flags.
func buildEnqueuePayload(cmd *cobra.Command, kind database.JobKind) ([]byte, error) {
	var uids []string
	if raw := mustGetString(cmd, "photos"); raw != "" {
		for _, uid := range strings.Split(raw, ",") {
			if uid = strings.TrimSpace(uid); uid != "" {
				uids = append(uids, uid)
			}
		}
	}

	switch kind {
	case database.KindDetectFaces:
		return json.Marshal(jobs.DetectPayload{PhotoUIDs: uids})
	case database.KindEmbed:
		return json.Marshal(jobs.EmbedPayload{PhotoUIDs: uids, Force: mustGetBool(cmd, "force")})
	case database.KindCaption:
		return json.Marshal(jobs.CaptionPayload{PhotoUIDs: uids})
	case database.KindCluster:
		keepNames := !mustGetBool(cmd, "fresh")
		return json.Marshal(jobs.ClusterPayload{KeepNames: &keepNames})
	}
	return nil, fmt.Errorf("unknown job kind %q", kind)
}

func runJobsEnqueue(cmd *cobra.Command, args []string) error {
	kind := database.JobKind(mustGetString(cmd, "kind"))
	project := mustGetString(cmd, "project")
	if project == "" {
		return fmt.Errorf("--project is required")
	}

	payload, err := buildEnqueuePayload(cmd, kind)
	if err != nil {
		return err
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.jobs.Enqueue(context.Background(), kind, database.BackendCPU, project, payload)
	if err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}
	fmt.Printf("Enqueued %s job %s\n", kind, id)
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	job, err := a.jobs.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", args[0])
	}

	if err := a.jobs.RequestCancel(ctx, args[0]); err != nil {
		return fmt.Errorf("cancelling job: %w", err)
	}
	fmt.Printf("Cancel requested for job %s; the worker stops at its next heartbeat\n", args[0])
	return nil
}

func runJobsRecover(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	recovered, err := a.jobs.RecoverZombies(context.Background(), time.Now())
	if err != nil {
		return fmt.Errorf("recovering jobs: %w", err)
	}
	fmt.Printf("Marked %d orphaned jobs as failed\n", recovered)
	return nil
}
