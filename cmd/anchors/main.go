package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-anchors/boxes"
	"github.com/nvr-ai/go-anchors/config"
	"github.com/nvr-ai/go-anchors/encoding"
	"github.com/nvr-ai/go-anchors/matcher"
	"github.com/nvr-ai/go-anchors/priors"
)

// boxList collects repeated -box x1,y1,x2,y2,label flags.
type boxList []boxes.Labeled

func (b *boxList) String() string {
	parts := make([]string, len(*b))
	for i, l := range *b {
		parts[i] = l.String()
	}
	return strings.Join(parts, "; ")
}

func (b *boxList) Set(value string) error {
	fields := strings.Split(value, ",")
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return errors.Wrapf(err, "box %q", value)
		}
		row[i] = v
	}
	l, err := boxes.LabeledFromSlice(row)
	if err != nil {
		return err
	}
	if !l.Box.Valid() {
		return errors.Errorf("box %q has min corner past max corner", value)
	}
	*b = append(*b, l)
	return nil
}

func main() {
	var (
		configPath string
		priorsName string
		show       int
		height     int
		width      int
		verbose    bool
		gt         boxList
	)
	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	flag.StringVar(&priorsName, "priors", "", "Prior box configuration (overrides the config file)")
	flag.IntVar(&show, "show", 10, "Number of anchors to print")
	flag.IntVar(&height, "height", 0, "Image height in pixels; boxes are normalized when set")
	flag.IntVar(&width, "width", 0, "Image width in pixels; boxes are normalized when set")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Var(&gt, "box", "Ground truth box x1,y1,x2,y2,label (repeatable)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log, configPath, priorsName, show, height, width, gt); err != nil {
		log.WithError(err).Error("anchors failed")
		os.Exit(1)
	}
}

func run(log *logrus.Logger, configPath, priorsName string, show, height, width int, gt boxList) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if priorsName != "" {
		cfg.Priors = priors.Name(priorsName)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	set, err := priors.NewStore(log).Get(cfg.Priors)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"priors":  string(set.Name()),
		"anchors": set.Len(),
	}).Info("prior boxes ready")

	for i := 0; i < show && i < set.Len(); i++ {
		fmt.Printf("%6d  %s\n", i, set.At(i))
	}

	if len(gt) == 0 {
		return nil
	}

	truth := []boxes.Labeled(gt)
	if height > 0 && width > 0 {
		truth = boxes.NormalizeLabeled(truth, height, width)
	} else {
		log.Warn("no image size given; boxes are assumed to be normalized already")
	}

	matches, err := matcher.Match(truth, set, cfg.Matcher())
	if err != nil {
		return err
	}
	targets, err := encoding.Encode(matches, set, cfg.Variances)
	if err != nil {
		return err
	}
	decoded, err := encoding.Decode(targets, set, cfg.Variances)
	if err != nil {
		return err
	}

	var maxErr float64
	for i := range matches {
		for k := 0; k < 4; k++ {
			if d := math.Abs(decoded[i].Box[k] - matches[i].Box[k]); d > maxErr {
				maxErr = d
			}
		}
	}

	for i, b := range truth {
		log.WithFields(logrus.Fields{
			"box":     i,
			"label":   b.Label,
			"anchors": matches.Count(b),
		}).Info("ground truth matched")
	}
	log.WithFields(logrus.Fields{
		"positives":        matches.Positives(),
		"round_trip_error": maxErr,
	}).Info("targets encoded")
	return nil
}
