// Package sshexec implements the scheduler capability by driving the TORQUE
// command line tools (qsub, qstat, qhold, qrls, qdel, pbsnodes) on a cluster
// login node over SSH. Job scripts are staged with SFTP before submission.
package sshexec

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	xssh "golang.org/x/crypto/ssh"

	"github.com/qflow-dev/qflow/internal/sched"
	qssh "github.com/qflow-dev/qflow/internal/ssh"
)

// Config holds the login node settings for the SSH-backed client.
type Config struct {
	Addr       string        `yaml:"addr"`
	User       string        `yaml:"user"`
	KeyPath    string        `yaml:"key_path"`
	KnownHosts string        `yaml:"known_hosts"`
	RemoteTmp  string        `yaml:"remote_tmp"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Client struct {
	cfg    Config
	server string
	cli    *xssh.Client
}

func New(cfg Config) *Client {
	if cfg.RemoteTmp == "" {
		cfg.RemoteTmp = "/tmp"
	}
	return &Client{cfg: cfg}
}

func (c *Client) Name() string { return "sshexec" }

// Connect dials the login node. The server argument names the batch server
// jobs are routed to; empty means the login node's default server.
func (c *Client) Connect(ctx context.Context, server string) error {
	if c.cli != nil {
		return nil
	}
	signer, err := qssh.LoadPrivateKeySigner(c.cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load ssh key: %w", err)
	}
	kh, err := qssh.LoadKnownHostsCallback(c.cfg.KnownHosts)
	if err != nil {
		return fmt.Errorf("load known hosts: %w", err)
	}
	cli, err := qssh.Dial(ctx, &qssh.Client{
		Addr:       c.cfg.Addr,
		User:       c.cfg.User,
		Signer:     signer,
		KnownHosts: kh,
		Timeout:    c.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	c.cli = cli
	c.server = server
	log.Debug().Str("addr", c.cfg.Addr).Str("server", server).Msg("connected to login node")
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	if c.cli == nil {
		return nil
	}
	err := c.cli.Close()
	c.cli = nil
	return err
}

var errNotConnected = errors.New("sshexec: not connected")

func (c *Client) run(ctx context.Context, command string) (string, string, error) {
	if c.cli == nil {
		return "", "", errNotConnected
	}
	return qssh.Run(ctx, c.cli, command)
}

// ListNodes reports all nodes known to the batch server via pbsnodes.
func (c *Client) ListNodes(ctx context.Context) ([]sched.Node, error) {
	out, stderr, err := c.run(ctx, "pbsnodes -a")
	if err != nil {
		return nil, fmt.Errorf("pbsnodes: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return parseNodes(out), nil
}

// Submit stages the job script on the login node and registers it with qsub.
// The returned identifier is the scheduler-assigned job id; qsub printing
// nothing while exiting zero yields an empty id, which the caller must treat
// as a failed submission.
func (c *Client) Submit(ctx context.Context, req sched.SubmitRequest) (string, error) {
	if c.cli == nil {
		return "", errNotConnected
	}
	remote := path.Join(c.cfg.RemoteTmp, filepath.Base(req.Script))
	if err := qssh.PushFile(c.cli, req.Script, remote); err != nil {
		return "", fmt.Errorf("stage script: %w", err)
	}

	cmd, err := c.qsubCommand(req, remote)
	if err != nil {
		return "", err
	}
	out, stderr, err := c.run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("qsub: %w (%s)", err, strings.TrimSpace(stderr))
	}
	id := firstLine(out)
	if id != "" {
		if err := qssh.RemoveFile(c.cli, remote); err != nil {
			log.Warn().Err(err).Str("path", remote).Msg("could not remove staged script")
		}
	}
	return id, nil
}

func (c *Client) qsubCommand(req sched.SubmitRequest, scriptPath string) (string, error) {
	args := []string{"qsub", "-N", shellQuote(req.Name)}
	for _, k := range sortedKeys(req.Resources) {
		args = append(args, "-l", shellQuote(k+"="+req.Resources[k]))
	}
	if req.Depend != "" {
		args = append(args, "-W", shellQuote("depend="+req.Depend))
	}
	if req.Hold != "" {
		// qsub can only assert a user hold at submission time
		if req.Hold != "u" {
			return "", fmt.Errorf("qsub: unsupported submit-time hold kind %q", req.Hold)
		}
		args = append(args, "-h")
	}
	if len(req.Variables) > 0 {
		args = append(args, "-v", shellQuote(strings.Join(req.Variables, ",")))
	}
	if req.Mail != "" {
		args = append(args, "-m", req.Mail)
	}
	if dest := c.destination(req.Queue); dest != "" {
		args = append(args, "-q", shellQuote(dest))
	}
	args = append(args, shellQuote(scriptPath))
	return strings.Join(args, " "), nil
}

func (c *Client) destination(queue string) string {
	if c.server == "" {
		return queue
	}
	return queue + "@" + c.server
}

func (c *Client) SetAttribute(ctx context.Context, jobID string, attr sched.Attribute, value string) error {
	if attr != sched.AttrHold {
		return fmt.Errorf("sshexec: unsupported attribute %q", attr)
	}
	_, stderr, err := c.run(ctx, fmt.Sprintf("qhold -h %s %s", value, shellQuote(jobID)))
	if err != nil {
		return fmt.Errorf("qhold: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return nil
}

func (c *Client) ClearAttribute(ctx context.Context, jobID string, attr sched.Attribute, value string) error {
	if attr != sched.AttrHold {
		return fmt.Errorf("sshexec: unsupported attribute %q", attr)
	}
	_, stderr, err := c.run(ctx, fmt.Sprintf("qrls -h %s %s", value, shellQuote(jobID)))
	if err != nil {
		return fmt.Errorf("qrls: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return nil
}

// Query returns the requested attributes of a job, or a nil map when the
// scheduler no longer has a record of it.
func (c *Client) Query(ctx context.Context, jobID string, names []string) (map[string]string, error) {
	out, stderr, err := c.run(ctx, "qstat -f "+shellQuote(jobID))
	if err != nil {
		if strings.Contains(stderr, "Unknown Job Id") {
			return nil, nil
		}
		return nil, fmt.Errorf("qstat: %w (%s)", err, strings.TrimSpace(stderr))
	}
	attrs := parseJobAttributes(out)
	if len(attrs) == 0 {
		return nil, nil
	}
	if names == nil {
		return attrs, nil
	}
	filtered := map[string]string{}
	if id, ok := attrs["id"]; ok {
		filtered["id"] = id
	}
	for _, n := range names {
		if v, ok := attrs[n]; ok {
			filtered[n] = v
		}
	}
	return filtered, nil
}

func (c *Client) Delete(ctx context.Context, jobID string) error {
	_, stderr, err := c.run(ctx, "qdel "+shellQuote(jobID))
	if err != nil {
		return fmt.Errorf("qdel: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return nil
}
