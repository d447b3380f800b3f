// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/database"
	"github.com/etfolio/etf-api/middleware"
	"github.com/etfolio/etf-api/observability/opentelemetry"
	"github.com/etfolio/etf-api/router"

	"github.com/go-co-op/gocron"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	serveCmd.Flags().String("cors-origins", "http://localhost:8080", "Comma separated list of allowed CORS origins")
	viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origins"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the etf-api server",
	Long:  `Run HTTP server that implements the ETF analytics API`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		if viper.GetString("otlp.endpoint") != "" {
			shutdownTracing, err := opentelemetry.Setup()
			if err != nil {
				log.Fatal().Stack().Err(err).Msg("could not initialize tracing")
			}
			defer shutdownTracing(context.Background())
		}

		ctx := context.Background()

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		// load sector/region reference data into memory
		if err := data.LoadClassificationsFromDB(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not load classification reference data")
		}

		// refresh reference data daily after the market close
		scheduler := gocron.NewScheduler(common.GetTimezone())
		scheduler.Every(1).Day().At("17:00").Do(func() {
			if err := data.LoadClassificationsFromDB(context.Background()); err != nil {
				log.Error().Stack().Err(err).Msg("scheduled classification refresh failed")
			}
		})
		scheduler.StartAsync()

		app := fiber.New(fiber.Config{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})

		// shutdown cleanly on interrupt
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		go func() {
			sig := <-quit // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			scheduler.Stop()
			if err := app.Shutdown(); err != nil {
				log.Fatal().Stack().Err(err).Msg("could not shutdown server")
			}
		}()

		app.Use(cors.New(cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		}))

		app.Use(middleware.NewLogger())

		router.SetupRoutes(app)

		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Fatal().Stack().Err(err).Msg("server exited with error")
		}

		database.LogOpenTransactions()
	},
}
