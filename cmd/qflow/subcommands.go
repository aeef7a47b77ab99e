package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qflow-dev/qflow/internal/batch"
	"github.com/qflow-dev/qflow/internal/config"
	"github.com/qflow-dev/qflow/internal/sched"
	"github.com/qflow-dev/qflow/internal/sched/sshexec"
	"github.com/qflow-dev/qflow/internal/sched/unavail"
	qssh "github.com/qflow-dev/qflow/internal/ssh"
	"github.com/qflow-dev/qflow/internal/store"
	"github.com/qflow-dev/qflow/pkg/api"
)

// resolveClient loads the configuration and picks the scheduler client
// variant it names. The choice is made once here; a missing capability fails
// fast on first use instead of degrading silently.
func resolveClient(cmd *cobra.Command) (sched.Client, config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	reg := sched.NewRegistry()
	reg.Register(sshexec.New(cfg.SSH))
	reg.Register(unavail.New("no scheduler access configured (set scheduler: sshexec)"))
	client, err := reg.Get(cfg.Scheduler)
	if err != nil {
		return nil, config.Config{}, err
	}
	return client, cfg, nil
}

// Write a starter configuration and SSH keypair
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				cfgPath = config.DefaultPath()
			}
			cfg := config.Config{
				Scheduler: "sshexec",
				StorePath: filepath.Join(filepath.Dir(cfgPath), "qflow.db"),
			}
			cfg.SSH.RemoteTmp = "/tmp"
			cfg.SSH.KeyPath = filepath.Join(filepath.Dir(cfgPath), "id_ed25519")
			cfg.SSH.KnownHosts = filepath.Join(filepath.Dir(cfgPath), "known_hosts")
			if err := config.Write(cfgPath, cfg); err != nil {
				return err
			}
			if keygen, _ := cmd.Flags().GetBool("keygen"); keygen {
				pub, err := qssh.GenerateEd25519Keypair(cfg.SSH.KeyPath)
				if err != nil {
					return err
				}
				fmt.Printf("generated %s\nauthorize this key on the login node:\n%s", cfg.SSH.KeyPath, pub)
			}
			fmt.Printf("wrote %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().Bool("keygen", false, "also generate an SSH keypair for the login node")
	return cmd
}

// Submit a batch of jobs
func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <batch.yaml>",
		Short: "Submit a batch of interdependent jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := api.LoadBatchSpec(args[0])
			if err != nil {
				return err
			}
			ordered, err := spec.TopoOrder()
			if err != nil {
				return err
			}
			client, cfg, err := resolveClient(cmd)
			if err != nil {
				return err
			}

			conn := batch.NewConnection(client, cfg.Server)
			coord := batch.NewCoordinator(conn)
			ctx := cmd.Context()
			if err := coord.Begin(ctx); err != nil {
				return err
			}

			jobs := map[string]*batch.Job{}
			for _, js := range ordered {
				job := batch.NewJob(conn, js.Name, js.Script, js.Env,
					batch.ResourceRequest{Hours: js.Hours, Cores: js.Cores})
				job.Queue = spec.Queue
				after := make([]*batch.Job, 0, len(js.After))
				for _, dep := range js.After {
					after = append(after, jobs[dep])
				}
				if err := coord.Submit(ctx, job, after...); err != nil {
					// do not continue: later jobs may depend on this one
					return fmt.Errorf("batch aborted: %w", err)
				}
				jobs[js.Name] = job
			}

			if err := coord.Commit(ctx); err != nil {
				return err
			}

			records := make([]store.JobRecord, 0, len(ordered))
			for _, js := range ordered {
				records = append(records, store.JobRecord{Name: js.Name, JobID: jobs[js.Name].ID()})
			}
			st, err := store.New(cfg.StorePath)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveBatch(ctx, spec.Name, records); err != nil {
				return err
			}

			for _, js := range ordered {
				fmt.Printf("%s\t%s\n", js.Name, jobs[js.Name].ID())
			}
			return nil
		},
	}
}

// Report the state of a previously submitted batch
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <batch-name>",
		Short: "Report the state of a previously submitted batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.StorePath)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()
			records, err := st.Jobs(ctx, args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no batch named %q recorded", args[0])
			}

			conn := batch.NewConnection(client, cfg.Server)
			if err := conn.Connect(ctx); err != nil {
				return err
			}
			defer conn.Disconnect(ctx)

			for _, rec := range records {
				job := batch.AttachJob(conn, rec.Name, rec.JobID)
				state, err := job.State(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\t%s\n", rec.Name, rec.JobID, state)
			}
			return nil
		},
	}
}

// Show cluster nodes and the derived capacity
func newNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "Show cluster nodes and the derived per-node core capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			conn := batch.NewConnection(client, cfg.Server)
			ctx := cmd.Context()
			if err := conn.Connect(ctx); err != nil {
				return err
			}
			defer conn.Disconnect(ctx)

			nodes, err := client.ListNodes(ctx)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				fmt.Printf("%s\t%d\t%s\n", n.Name, n.Cores, n.State)
			}
			capacity, err := conn.NodeCapacity(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("capacity: %d cores per node\n", capacity)
			return nil
		},
	}
}

// Delete jobs of a previously submitted batch
func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <batch-name>",
		Short: "Delete the jobs of a previously submitted batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			only, _ := cmd.Flags().GetString("job")
			client, cfg, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.StorePath)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()
			records, err := st.Jobs(ctx, args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no batch named %q recorded", args[0])
			}

			conn := batch.NewConnection(client, cfg.Server)
			if err := conn.Connect(ctx); err != nil {
				return err
			}
			defer conn.Disconnect(ctx)

			var failed []string
			for _, rec := range records {
				if only != "" && rec.Name != only {
					continue
				}
				job := batch.AttachJob(conn, rec.Name, rec.JobID)
				if err := job.Remove(ctx); err != nil {
					failed = append(failed, fmt.Sprintf("%s: %v", rec.Name, err))
					continue
				}
				fmt.Printf("deleted %s (%s)\n", rec.Name, rec.JobID)
			}
			if len(failed) > 0 {
				return fmt.Errorf("some deletions failed:\n%s", strings.Join(failed, "\n"))
			}
			return nil
		},
	}
	cmd.Flags().String("job", "", "delete only the named job of the batch")
	return cmd
}
