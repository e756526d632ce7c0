package core

import (
	"context"
	"fmt"
)

// keyMap resolves natural keys to surrogate ids for one import run.
//
// It is built once from storage and extended as the executor creates rows,
// so later rows in the batch can reference records created earlier in it.
// A keyMap is owned by a single run and is not safe for concurrent use.
type keyMap struct {
	customers map[string]string // bc_customer_number -> id
	contacts  map[string]string // voyado_id -> id (non-merged only)
}

func newKeyMap(customers, contacts []Record) *keyMap {
	km := &keyMap{
		customers: make(map[string]string, len(customers)),
		contacts:  make(map[string]string, len(contacts)),
	}
	for _, c := range customers {
		if bc := c.String(ColBcCustomerNumber); bc != "" {
			km.customers[bc] = c.ID()
		}
	}
	for _, c := range contacts {
		if c.Bool(ColIsMerged) {
			continue
		}
		if v := c.String(ColVoyadoID); v != "" {
			km.contacts[v] = c.ID()
		}
	}
	return km
}

func (k *keyMap) customerID(bc string) (string, bool) {
	if bc == "" {
		return "", false
	}
	id, ok := k.customers[bc]
	return id, ok
}

func (k *keyMap) addCustomer(bc, id string) {
	if bc != "" && id != "" {
		k.customers[bc] = id
	}
}

func (k *keyMap) contactID(voyadoID string) (string, bool) {
	if voyadoID == "" {
		return "", false
	}
	id, ok := k.contacts[voyadoID]
	return id, ok
}

func (k *keyMap) addContact(voyadoID, id string) {
	if voyadoID != "" && id != "" {
		k.contacts[voyadoID] = id
	}
}

// Snapshot is the read-only view of storage the validator checks against.
type Snapshot struct {
	Customers map[string]Record // by bc_customer_number
	Contacts  map[string]Record // non-merged contacts by voyado_id
}

// NewSnapshot indexes existing records by their natural keys.
// Merged contacts and records without a natural key are left out.
func NewSnapshot(customers, contacts []Record) *Snapshot {
	s := &Snapshot{
		Customers: make(map[string]Record, len(customers)),
		Contacts:  make(map[string]Record, len(contacts)),
	}
	for _, c := range customers {
		if bc := c.String(ColBcCustomerNumber); bc != "" {
			s.Customers[bc] = c
		}
	}
	for _, c := range contacts {
		if c.Bool(ColIsMerged) {
			continue
		}
		if v := c.String(ColVoyadoID); v != "" {
			s.Contacts[v] = c
		}
	}
	return s
}

// LoadSnapshot reads existing customers and non-merged contacts from store.
func LoadSnapshot(ctx context.Context, store Store) (*Snapshot, error) {
	customers, err := store.Find(ctx, TableCustomers, nil)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	contacts, err := store.Find(ctx, TableContacts, Filter{ColIsMerged: false})
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	return NewSnapshot(customers, contacts), nil
}
