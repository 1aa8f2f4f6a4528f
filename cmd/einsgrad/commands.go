package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/einsgrad-ml/einsgrad/deriv"
	"github.com/einsgrad-ml/einsgrad/expr"
	"github.com/einsgrad-ml/einsgrad/grad"
)

var (
	wrtName   string
	wrtPos    int
	emitFlat  bool
	outputVar string

	diffCmd = &cobra.Command{
		Use:   "diff [equation]",
		Short: "Differentiate a single tensor assignment",
		Long: `Differentiate one flat assignment with respect to an operand, named
with --wrt or addressed by position with --pos.

Example:

  einsgrad diff "z[i] = mul(w[i, j], x[j])" --wrt x`,
		Args: cobra.ExactArgs(1),
		Run:  runDiff,
	}

	gradCmd = &cobra.Command{
		Use:   "grad [file]",
		Short: "Emit the gradient of a straight-line tensor program",
		Long: `Read a program with one assignment per line ('-' for stdin), run
reverse-mode accumulation from the output variable, and print one flattened
derivative assignment per dependency.`,
		Args: cobra.ExactArgs(1),
		Run:  runGrad,
	}
)

func runDiff(cmd *cobra.Command, args []string) {
	eq, err := expr.ParseEquation(args[0])
	if err != nil {
		exitf("%v", err)
	}

	eng := buildEngine()
	var d *deriv.TensorDeriv
	switch {
	case wrtName != "":
		d, err = eng.Differentiate(eq, wrtName)
	case wrtPos >= 0:
		d, err = eng.DifferentiatePos(eq, wrtPos)
	default:
		exitf("one of --wrt or --pos is required")
	}
	if err != nil {
		exitf("%v", err)
	}

	if emitFlat {
		fmt.Println(d.FlatEquation())
		return
	}
	fmt.Println(d)
}

func runGrad(cmd *cobra.Command, args []string) {
	src, err := readProgram(args[0])
	if err != nil {
		exitf("%v", err)
	}
	p, err := grad.ParseProgram(src)
	if err != nil {
		exitf("%v", err)
	}

	output := outputVar
	if output == "" {
		assigns := p.Assignments()
		if len(assigns) == 0 {
			exitf("empty program")
		}
		output = assigns[len(assigns)-1].LHS.(*expr.Var).Name
	}

	eng := buildEngine()
	grads, err := eng.Gradient(p, output)
	if err != nil {
		exitf("%v", err)
	}
	for _, line := range grad.EmitGradient(p, grads) {
		fmt.Println(line)
	}
}

func readProgram(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
