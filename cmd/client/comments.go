package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ellemouton/lndboard/lnurl"
)

var commentsCommand = &cli.Command{
	Name:  "comments",
	Usage: "Show the most recent comments on a board",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "url",
			Usage:    "base url of the board, for example https://board.example.com",
			Required: true,
		},
	},
	Action: listComments,
}

var encodeCommand = &cli.Command{
	Name:      "encode",
	Usage:     "Encode a url as an LNURL",
	ArgsUsage: "url",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected exactly one url")
		}

		encoded, err := lnurl.EncodeURL(ctx.Args().First())
		if err != nil {
			return err
		}

		fmt.Println(encoded)
		return nil
	},
}

var decodeCommand = &cli.Command{
	Name:      "decode",
	Usage:     "Decode an LNURL into the url it wraps",
	ArgsUsage: "lnurl",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected exactly one LNURL")
		}

		decoded, err := lnurl.DecodeURL(ctx.Args().First())
		if err != nil {
			return err
		}

		fmt.Println(decoded)
		return nil
	},
}

type comment struct {
	Id        uint64    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

func listComments(ctx *cli.Context) error {
	base := strings.TrimSuffix(ctx.String("url"), "/")

	var resp struct {
		Messages []*comment `json:"messages"`
	}
	if err := get(base+"/comments", &resp); err != nil {
		return err
	}

	if len(resp.Messages) == 0 {
		fmt.Println("No comments yet.")
		return nil
	}

	for _, c := range resp.Messages {
		fmt.Printf("[%s] #%d %s\n", c.CreatedAt.Format(time.RFC3339),
			c.Id, c.Text)
	}

	return nil
}
