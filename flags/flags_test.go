package flags

import (
	"testing"
	"time"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")

			// The executable location keeps its historic unprefixed name
			switch flagName {
			case Executable.Name:
				require.Equal(t, "DIST_LOC", envFlags[0])
			default:
				expectedEnvVar := opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix)
				require.Equal(t, expectedEnvVar, envFlags[0])
			}
		})
	}
}

func TestCheckRequired(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		shouldError bool
	}{
		{"catalog", []string{"app", "--catalog", "catalog.yaml"}, false},
		{"features", []string{"app", "--features", "features/"}, false},
		{"both", []string{"app", "--catalog", "c.yaml", "--features", "f/"}, false},
		{"neither", []string{"app", "--suite", "smoke"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := &cli.App{
				Flags: Flags,
				Action: func(ctx *cli.Context) error {
					return CheckRequired(ctx)
				},
			}
			err := app.Run(tc.args)
			if tc.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecutableFromEnv(t *testing.T) {
	t.Setenv("DIST_LOC", "/opt/x3f/bin/x3f_extract")

	app := &cli.App{
		Flags: []cli.Flag{Executable, DefaultTimeout},
		Action: func(ctx *cli.Context) error {
			assert.Equal(t, "/opt/x3f/bin/x3f_extract", ctx.String(Executable.Name))
			assert.Equal(t, 10*time.Minute, ctx.Duration(DefaultTimeout.Name))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app"}))
}
