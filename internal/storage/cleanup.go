package storage

// DeleteOlderThan deletes history rows with a timestamp before the given
// unix epoch and returns the number of deleted rows. The settings table is
// never touched; it holds current values, not time series.
func (d *DB) DeleteOlderThan(before int64) (int64, error) {
	res, err := d.db.Exec("DELETE FROM battery_history WHERE timestamp < ?", before)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
