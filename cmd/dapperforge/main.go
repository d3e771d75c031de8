// Command dapperforge is a small operational CLI around the engine's
// connection factories: verifying connectivity and running ad-hoc
// diagnostic queries outside the typed EntitySet surface. Grounded on the
// teacher's cmd/redi-orm/main.go command set (ping/query-shaped commands
// driven by a --db-style connection flag), restructured onto
// github.com/spf13/cobra the way Pieczasz-smf/cli/main.go builds its
// rootCmd/subcommand tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nahmadov/dapperforge/dfconfig"
	"github.com/nahmadov/dapperforge/drivers/oracle"
	"github.com/nahmadov/dapperforge/drivers/sqlserver"
	"github.com/nahmadov/dapperforge/drivers/sqlxadapter"
)

var version = "dev"

var (
	driverName string
	host       string
	port       int
	database   string
	user       string
	password   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dapperforge",
		Short: "Operational CLI for the dapperforge ORM engine",
	}
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "sqlserver", "Target dialect: sqlserver|oracle")
	rootCmd.PersistentFlags().StringVar(&host, "host", "localhost", "Database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Database port (0 uses the driver default)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "Database/service name")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "Username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password")

	rootCmd.AddCommand(versionCmd(), pingCmd(), queryCmd(), configCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("dapperforge %s\n", version)
			return nil
		},
	}
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-check <config.yaml>",
		Short: "Load and validate a YAML engine configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := dfconfig.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("dialect:           %s\n", raw.DialectName)
			fmt.Printf("dsn:               %s\n", raw.DSN)
			fmt.Printf("commandTimeout:    %ds\n", raw.CommandTimeoutSeconds)
			fmt.Printf("maxRetryCount:     %d\n", raw.MaxRetryCount)
			fmt.Printf("baseRetryDelay:    %s\n", raw.BaseRetryDelay())
			fmt.Printf("logLevel:          %s\n", raw.LogLevel)
			return nil
		},
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Open and ping the configured database connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			var factory dfconfig.ConnectionFactory
			switch driverName {
			case "sqlserver":
				factory = sqlserver.New(sqlserver.Options{Host: host, Port: port, Database: database, User: user, Password: password})
			case "oracle":
				factory = oracle.New(oracle.Options{Host: host, Port: port, Service: database, User: user, Password: password})
			default:
				return fmt.Errorf("unsupported driver %q", driverName)
			}
			db, err := factory(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()
			fmt.Println("connection OK")
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run an ad-hoc SQL statement and print the result rows",
		Long: `query runs outside the typed EntitySet surface: it scans rows by
column name rather than through the model registry, for diagnostics and
migration-check style reporting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), args[0])
		},
	}
}

func runQuery(ctx context.Context, sqlText string) error {
	driverAlias, dsn, err := dsnFor(driverName)
	if err != nil {
		return err
	}
	db, err := sqlxadapter.Open(ctx, driverAlias, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryxContext(ctx, sqlText)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		fmt.Println(row)
		count++
	}
	fmt.Printf("%d row(s)\n", count)
	return nil
}

func dsnFor(driver string) (driverAlias, dsn string, err error) {
	switch driver {
	case "sqlserver":
		opts := sqlserver.Options{Host: host, Port: port, Database: database, User: user, Password: password}
		return "sqlserver", opts.DSN(), nil
	case "oracle":
		opts := oracle.Options{Host: host, Port: port, Service: database, User: user, Password: password}
		return "oracle", opts.DSN(), nil
	default:
		return "", "", fmt.Errorf("unsupported driver %q", driver)
	}
}
