package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hris"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultPasswordEnv holds the initial password when the spec file leaves it out.
const DefaultPasswordEnv = "NEW_ACCOUNT_PASSWORD"

type provisionOptions struct {
	file        string
	employeeID  string
	groups      []string
	container   string
	passwordEnv string
	actor       string
}

func newProvisionCommand(opts *RootOptions) *cobra.Command {
	po := &provisionOptions{}
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a directory account for a new hire",
		Long: `Creates the account if it does not exist and adds it to the baseline group and any
requested groups. The account is described by a YAML file (--file) or taken from the HR
roster (--employee). The initial password is read from the file or from $` + DefaultPasswordEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, opts, po)
		},
	}
	cmd.Flags().StringVarP(&po.file, "file", "f", "", "YAML account spec")
	cmd.Flags().StringVar(&po.employeeID, "employee", "", "build the spec from this HR record")
	cmd.Flags().StringSliceVarP(&po.groups, "group", "g", nil, "extra group to join (repeatable)")
	cmd.Flags().StringVar(&po.container, "container", "", "container DN for the new account")
	cmd.Flags().StringVar(&po.passwordEnv, "password-env", DefaultPasswordEnv, "environment variable holding the initial password")
	cmd.Flags().StringVar(&po.actor, "actor", "cli", "name recorded as performedBy in the audit log")
	cmd.MarkFlagsMutuallyExclusive("file", "employee")
	cmd.MarkFlagsOneRequired("file", "employee")
	return cmd
}

func runProvision(cmd *cobra.Command, opts *RootOptions, po *provisionOptions) error {
	ctx := audit.WithActor(commandContext(cmd), po.actor)
	return withApp(ctx, opts, func(a *app) error {
		var spec ad.AccountSpec
		if po.file != "" {
			loaded, err := loadAccountSpec(po.file)
			if err != nil {
				return err
			}
			spec = loaded
		} else {
			records, err := hris.NewFileSource(a.cfg.RosterPath).Fetch(ctx, []string{po.employeeID})
			if err != nil {
				return fmt.Errorf("failed to read HR roster: %w", err)
			}
			if len(records) == 0 {
				return fmt.Errorf("employee %s: %s", po.employeeID, hrsync.ReasonNoHRRecord)
			}
			spec = hrsync.SpecFromRecord(records[0])
		}

		spec.Groups = append(spec.Groups, po.groups...)
		if po.container != "" {
			spec.Container = po.container
		}
		if spec.Password == "" && po.passwordEnv != "" {
			spec.Password = os.Getenv(po.passwordEnv)
		}

		outcome, err := a.engine.Provision(ctx, spec)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), opts.Format, outcome)
	})
}

func loadAccountSpec(path string) (ad.AccountSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ad.AccountSpec{}, fmt.Errorf("failed to read account spec: %w", err)
	}
	var spec ad.AccountSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ad.AccountSpec{}, fmt.Errorf("failed to parse account spec %s: %w", path, err)
	}
	if strings.TrimSpace(spec.SAMAccountName) == "" {
		return ad.AccountSpec{}, errors.New("account spec has no accountName")
	}
	return spec, nil
}

func printOutcome(w io.Writer, format string, o *ad.ProvisioningOutcome) error {
	if format == "json" {
		return printJSON(w, o)
	}
	table := newTable(w, "CREATED", "DN", "GROUPS", "FAILED GROUPS")
	var failed []string
	for group, reason := range o.GroupErrors {
		failed = append(failed, group+" ("+reason+")")
	}
	sort.Strings(failed)
	table.Append([]string{fmt.Sprintf("%t", o.AccountCreated), o.DistinguishedName, joinOrDash(o.GroupsApplied), joinOrDash(failed)})
	table.Render()
	_, err := fmt.Fprintln(w, "\n"+o.Message())
	return err
}
