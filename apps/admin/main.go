package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/device"
	logsvc "github.com/trezcool/hudhurio/services/logger"
	"github.com/trezcool/hudhurio/storage/database"
	sqlxrepos "github.com/trezcool/hudhurio/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	errAndDie(conf.Validate())

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	sdb := sqlx.NewDb(db, "postgres")

	attRepo := sqlxrepos.NewAttendanceRepository(sdb)
	devRepo := sqlxrepos.NewDeviceRepository(sdb)

	// start CLI
	cli := commandLine{
		db:       db,
		attSvc:   attendance.NewService(attRepo, devRepo, logsvc.NewStdLogger(logger)),
		devSvc:   device.NewService(devRepo),
		auditSvc: audit.NewService(sqlxrepos.NewAuditRepository(sdb)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
