package movement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/chrissnell/circuitgrid/internal/types"
)

var recordHeader = []string{
	"Route_id",
	"Movement_id",
	"Start_Time",
	"End_Time",
	"Total_Journey_Time_Seconds",
	"Total_Journey_Time_Minutes",
	"Total_Circuit_Time_Seconds",
	"Total_Circuit_Time_Minutes",
	"Circuit_Count",
	"Average_Circuit_Duration",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []types.MovementRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	for _, r := range records {
		row := []string{
			r.RouteID,
			r.MovementID,
			r.StartTime.Format(exportTimeLayout),
			r.EndTime.Format(exportTimeLayout),
			f(r.TotalJourneySeconds),
			f(r.TotalJourneyMinutes),
			f(r.TotalCircuitSeconds),
			f(r.TotalCircuitMinutes),
			strconv.Itoa(r.CircuitCount),
			f(r.AvgCircuitDuration),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing movement %s: %w", r.MovementID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
