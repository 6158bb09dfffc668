package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/course"
	"github.com/playlms/backend/core/playlist"
	"github.com/playlms/backend/core/user"
	emailsvc "github.com/playlms/backend/services/email"
	logsvc "github.com/playlms/backend/services/logger"
	youtubesvc "github.com/playlms/backend/services/youtube"
	"github.com/playlms/backend/storage/database"
	"github.com/playlms/backend/storage/database/sqlxrepos"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	svcLogger := logsvc.NewStdLogger(logger)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	usrRepo := sqlxrepos.NewUserRepository(dbx)
	crsRepo := sqlxrepos.NewCourseRepository(dbx)

	core.ParseEmailTemplates(conf, svcLogger)
	catalog := youtubesvc.NewClient(conf, svcLogger)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  usrRepo,
		usrSvc:   user.NewService(usrRepo, emailsvc.NewConsoleService(conf), conf),
		crsSvc:   course.NewService(crsRepo, playlist.NewFetcher(catalog, svcLogger), svcLogger),
		validate: validate,
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
