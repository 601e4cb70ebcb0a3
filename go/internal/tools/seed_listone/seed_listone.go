package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mattiabrun/fantalega/go/internal/dbconfig"
	"github.com/mattiabrun/fantalega/go/internal/models"
)

// Seeds the players table from a listone CSV with the columns
// role,name,team,quotation[,age]. Re-running the import updates the
// quotation of players already present, which is how a new season's
// price list is applied.

func main() {
	ctx := context.Background()

	path := "go/internal/assets/listone.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer file.Close()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	total, inserted, updated, errs := 0, 0, 0, 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			errs++
			continue
		}
		if line == 1 && record[0] == "role" {
			continue // header
		}
		total++

		if len(record) < 4 {
			fmt.Fprintf(os.Stderr, "line %d: want role,name,team,quotation[,age]\n", line)
			errs++
			continue
		}
		role, err := models.ParseRole(record[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			errs++
			continue
		}
		quotation, err := strconv.Atoi(record[3])
		if err != nil || quotation < 1 {
			fmt.Fprintf(os.Stderr, "line %d: bad quotation %q\n", line, record[3])
			errs++
			continue
		}
		age := 0
		if len(record) > 4 && record[4] != "" {
			if age, err = strconv.Atoi(record[4]); err != nil {
				fmt.Fprintf(os.Stderr, "line %d: bad age %q\n", line, record[4])
				errs++
				continue
			}
		}

		var isInsert bool
		err = pool.QueryRow(ctx, `
            INSERT INTO players (id, name, team, role, quotation, age)
            VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (name, team) DO UPDATE
            SET role = EXCLUDED.role, quotation = EXCLUDED.quotation, age = EXCLUDED.age
            RETURNING (xmax = 0)
        `, uuid.New(), record[1], record[2], string(role), quotation, age).Scan(&isInsert)
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: insert: %v\n", line, err)
			errs++
			continue
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}

	fmt.Printf(
		"Listone seed: total=%d inserted=%d updated=%d errors=%d\n",
		total, inserted, updated, errs,
	)
}
