package db

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

const (
	defaultDBPath = "./ledger.db"
)

// DBBlock records the head after every committed transaction
type DBBlock struct {
	gorm.Model
	Height uint64 `gorm:"column:height;not null;unique;index"`
	Time   int64  `gorm:"column:block_time;not null"`
}

func (DBBlock) TableName() string {
	return "blocks"
}

// DBReceipt stores the outcome of a transaction
type DBReceipt struct {
	gorm.Model
	Hash        string `gorm:"column:tx_hash;not null;unique;index;size:64"`
	BlockHeight uint64 `gorm:"column:block_height;not null;index"`
	FeePayer    string `gorm:"column:fee_payer;not null;index;size:44"`
	Success     bool   `gorm:"column:success;not null"`
	Data        []byte `gorm:"column:receipt;type:blob;not null"` // borsh encoded types.Receipt
}

// TableName specifies the table name for DBReceipt
func (DBReceipt) TableName() string {
	return "transactions"
}

// DBAccount represents an account in the database
type DBAccount struct {
	Address   string `gorm:"column:address;primaryKey;size:44"`
	Lamports  string `gorm:"column:lamports;not null;size:20"` // decimal, sqlite integers are signed
	Owner     string `gorm:"column:owner_address;not null;index;size:44"`
	Authority string `gorm:"column:authority_address;not null;index;size:44"`
	Data      []byte `gorm:"column:data;type:blob"`
}

// TableName specifies the table name for DBAccount
func (DBAccount) TableName() string {
	return "accounts"
}

// Context implements types.Ledger on SQLite with GORM
type Context struct {
	db *gorm.DB
}

func init() {
	context.Register(context.DBContextType, NewContext)
}

// NewContext opens the SQLite ledger at params["db_path"]
func NewContext(params map[string]any) (types.Ledger, error) {
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create db directory")
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	ctx := &Context{db: db}
	if err := ctx.initDB(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (c *Context) initDB() error {
	err := c.db.AutoMigrate(
		&DBBlock{},
		&DBReceipt{},
		&DBAccount{},
	)
	return errors.Wrap(err, "failed to migrate database")
}

// Begin starts a SQL transaction
func (c *Context) Begin() (types.Batch, error) {
	tx := c.db.Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "failed to begin transaction")
	}
	return &batch{tx: tx}, nil
}

// Account implements types.Ledger
func (c *Context) Account(addr core.Address) (*types.Account, error) {
	return getAccount(c.db, addr)
}

// Receipt implements types.Ledger
func (c *Context) Receipt(id core.Hash) (*types.Receipt, error) {
	var row DBReceipt
	result := c.db.Where("tx_hash = ?", id.String()).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, core.ErrReceiptNotFound
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to get receipt")
	}
	return types.DecodeReceipt(row.Data)
}

// Head implements types.Ledger
func (c *Context) Head() (types.BlockInfo, error) {
	var block DBBlock
	result := c.db.Order("height desc").First(&block)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return types.BlockInfo{}, nil
	}
	if result.Error != nil {
		return types.BlockInfo{}, errors.Wrap(result.Error, "failed to get head")
	}
	return types.BlockInfo{Height: block.Height, Time: block.Time}, nil
}

// AccountsByOwner implements types.Ledger using the owner_address index
func (c *Context) AccountsByOwner(owner core.Address) ([]types.KeyedAccount, error) {
	var rows []DBAccount
	if err := c.db.Where("owner_address = ?", owner.String()).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}
	out := make([]types.KeyedAccount, 0, len(rows))
	for i := range rows {
		addr, err := core.AddressFromString(rows[i].Address)
		if err != nil {
			return nil, errors.Wrap(err, "corrupt address")
		}
		acct, err := rows[i].account()
		if err != nil {
			return nil, err
		}
		out = append(out, types.KeyedAccount{Address: addr, Account: acct})
	}
	// base58 text does not sort like the raw address
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

// Close releases the underlying connection pool
func (c *Context) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getAccount(db *gorm.DB, addr core.Address) (*types.Account, error) {
	var row DBAccount
	result := db.Where("address = ?", addr.String()).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, core.ErrAccountNotFound
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to get account")
	}
	return row.account()
}

func (row *DBAccount) account() (*types.Account, error) {
	lamports, err := strconv.ParseUint(row.Lamports, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt lamports")
	}
	owner, err := core.AddressFromString(row.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt owner")
	}
	authority, err := core.AddressFromString(row.Authority)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt authority")
	}
	acct := &types.Account{
		Lamports:  lamports,
		Owner:     owner,
		Authority: authority,
		Data:      row.Data,
	}
	if len(acct.Data) == 0 {
		acct.Data = nil
	}
	return acct, nil
}

// batch wraps one SQL transaction
type batch struct {
	tx     *gorm.DB
	closed bool
}

func (b *batch) GetAccount(addr core.Address) (*types.Account, error) {
	if b.closed {
		return nil, types.ErrBatchClosed
	}
	return getAccount(b.tx, addr)
}

func (b *batch) PutAccount(addr core.Address, account *types.Account) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	row := &DBAccount{
		Address:   addr.String(),
		Lamports:  strconv.FormatUint(account.Lamports, 10),
		Owner:     account.Owner.String(),
		Authority: account.Authority.String(),
		Data:      account.Data,
	}
	// Update or create the row
	err := b.tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	return errors.Wrap(err, "failed to put account")
}

func (b *batch) DeleteAccount(addr core.Address) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	err := b.tx.Where("address = ?", addr.String()).Delete(&DBAccount{}).Error
	return errors.Wrap(err, "failed to delete account")
}

func (b *batch) PutReceipt(receipt *types.Receipt) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	data, err := receipt.Encode()
	if err != nil {
		return err
	}
	row := &DBReceipt{
		Hash:        receipt.ID.String(),
		BlockHeight: receipt.BlockHeight,
		FeePayer:    receipt.FeePayer.String(),
		Success:     receipt.Success,
		Data:        data,
	}
	return errors.Wrap(b.tx.Create(row).Error, "failed to save receipt")
}

func (b *batch) PutHead(head types.BlockInfo) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	row := &DBBlock{Height: head.Height, Time: head.Time}
	return errors.Wrap(b.tx.Create(row).Error, "failed to save block")
}

func (b *batch) Commit() error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.closed = true
	return errors.Wrap(b.tx.Commit().Error, "failed to commit")
}

func (b *batch) Rollback() error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.closed = true
	return errors.Wrap(b.tx.Rollback().Error, "failed to rollback")
}
