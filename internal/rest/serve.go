// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mlnoga/flatfield/internal/blur"
	"github.com/mlnoga/flatfield/internal/flat"
	"github.com/mlnoga/flatfield/internal/ops"
	"github.com/mlnoga/flatfield/web"
)

// Creates the HTTP API. Requests are access-logged to logger, and each correction
// uses at most maxThreads goroutines
func NewRouter(logger zerolog.Logger, maxThreads int) *gin.Engine {
	s := &server{logger: logger, maxThreads: maxThreads}

	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/correct", s.postCorrect)
			v1.POST("/pipeline", s.postPipeline)
		}
	}
	return r
}

// Listens on addr and serves the HTTP API until an error occurs
func Serve(addr string, logger zerolog.Logger, maxThreads int) error {
	logger.Info().Str("addr", addr).Int("maxThreads", maxThreads).Msg("serving")
	return NewRouter(logger, maxThreads).Run(addr)
}

type server struct {
	logger     zerolog.Logger
	maxThreads int
}

// Writes one structured log line per request
func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Str("client", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postCorrectArgs struct {
	Input      string `json:"input" binding:"required"`
	Output     string `json:"output" binding:"required"`
	KernelSize int    `json:"kernelSize"`
	Mode       string `json:"mode"`
	Backend    string `json:"backend"`
}

// Validates the arguments and turns them into a pipeline
func (args *postCorrectArgs) pipeline() (*ops.OpSequence, error) {
	opts := flat.DefaultOptions()
	if args.KernelSize != 0 {
		opts.KernelSize = args.KernelSize
	}
	if _, err := flat.NormalizeKernelSize(opts.KernelSize); err != nil {
		return nil, err
	}
	mode, err := flat.ParseMode(args.Mode)
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	if args.Backend != "" {
		if _, err := blur.Lookup(args.Backend); err != nil {
			return nil, err
		}
		opts.Backend = args.Backend
	}
	return ops.NewPipeline(args.Input, args.Output, opts), nil
}

func (s *server) postCorrect(c *gin.Context) {
	var args postCorrectArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seq, err := args.pipeline()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.run(c, seq, args)
}

func (s *server) postPipeline(c *gin.Context) {
	var seq ops.OpSequence
	if err := c.ShouldBindJSON(&seq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.run(c, &seq, &seq)
}

// Builds the promises of the sequence in a sandboxed context, rejecting invalid pipelines
// with a bad request. Then materializes them, streaming the progress log as plain text
func (s *server) run(c *gin.Context, seq *ops.OpSequence, args interface{}) {
	logWriter := c.Writer
	ctx := ops.NewContext(logWriter, s.maxThreads)
	ctx.Sandboxed = true

	promises, err := seq.MakePromises(nil, ctx)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	if _, err := ops.MaterializeAll(promises, 1, true); err != nil {
		s.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("pipeline failed")
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
	} else {
		fmt.Fprintf(logWriter, "Done.\n")
	}
	logWriter.Flush()
}
