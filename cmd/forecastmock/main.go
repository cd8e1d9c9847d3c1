package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"

	"tsprep/internal/forecastmock"
)

func main() {
	var (
		addr     string
		steps    int
		failWith string
	)
	flag.StringVar(&addr, "addr", ":8800", "listen address")
	flag.IntVar(&steps, "steps", 2, "IN_PROGRESS describes before a job turns terminal")
	flag.StringVar(&failWith, "fail", "", "force every job to FAILED with this diagnostic")
	flag.Parse()

	logger := logrus.New()
	srv := forecastmock.NewServer(forecastmock.Config{StepsToActive: steps, FailWith: failWith}, logger)

	logged := handlers.LoggingHandler(os.Stdout, srv.Router())
	logger.WithField("addr", addr).Info("forecast emulator listening")
	logger.Fatal(http.ListenAndServe(addr, logged))
}
